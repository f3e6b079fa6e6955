package models

import "time"

type Appointment struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	ShopID uint `gorm:"index" json:"shop_id"`

	// BarberID is nil when the booking is not tied to a specific barber
	// (single-chair shops). Overlap checks treat nil as its own lane.
	BarberID *uint `gorm:"index" json:"barber_id"`

	ServiceID uint `json:"service_id"`

	StartTime time.Time `gorm:"index" json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Status string `gorm:"size:20;default:'pending'" json:"status"`

	CustomerName  string `gorm:"size:100" json:"customer_name"`
	CustomerPhone string `gorm:"size:20" json:"customer_phone"`
	CustomerEmail string `gorm:"size:100" json:"customer_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
