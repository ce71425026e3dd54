package model

import (
	"time"

	"gorm.io/gorm"
)

// Payment statuses reported by the external gateway.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// CoursePayment represents a payment record backing a course enrollment.
// The gateway interaction itself happens outside this service; we only
// store the reference and the asynchronously reported status.
type CoursePayment struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	CourseID         uint           `gorm:"not null;index" json:"course_id"`
	GatewayPaymentID string         `gorm:"type:varchar(100);uniqueIndex" json:"gateway_payment_id"`
	Amount           float64        `gorm:"not null" json:"amount"`
	Currency         string         `gorm:"type:varchar(10);default:'USD'" json:"currency"`
	Status           string         `gorm:"type:varchar(20);default:'pending'" json:"status"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for CoursePayment
func (CoursePayment) TableName() string {
	return "course_payments"
}
