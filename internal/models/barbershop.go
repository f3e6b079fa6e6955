package models

import "time"

type Barbershop struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"size:100;not null" json:"name"`
	Slug                 string    `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Timezone             string    `gorm:"size:64" json:"timezone"`
	MinAdvanceMinutes    int       `gorm:"default:120" json:"min_advance_minutes"`
	PublicBookingEnabled bool      `gorm:"default:true" json:"public_booking_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
