package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/BruksfildServices01/barber-sync/internal/config"
	dbpkg "github.com/BruksfildServices01/barber-sync/internal/db"
	"github.com/BruksfildServices01/barber-sync/internal/feed"
	"github.com/BruksfildServices01/barber-sync/internal/middleware"
	"github.com/BruksfildServices01/barber-sync/internal/ratelimit"
	"github.com/BruksfildServices01/barber-sync/internal/routes"
)

func main() {

	_ = godotenv.Load()

	cfg := config.Load()
	db := dbpkg.NewDB(cfg)

	var bus feed.Bus
	var limiter ratelimit.Limiter

	switch cfg.FeedTransport {
	case "rabbit":
		rabbit, err := feed.NewRabbitTransport(cfg.RabbitURL, "appointments")
		if err != nil {
			log.Fatalf("failed to connect rabbitmq: %v", err)
		}
		bus = rabbit
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)

	default:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opt)
		bus = feed.NewRedisTransport(client)
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	routes.RegisterRoutes(r, db, bus, limiter, cfg)

	log.Printf("Server running on %s", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
