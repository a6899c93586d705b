package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
)

// Notification stores in-app notifications addressed to a customer, vendor or driver.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientType enums.RecipientType    `gorm:"column:recipient_type;not null"`
	RecipientID   uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null"`
	Kind          enums.NotificationKind `gorm:"column:kind;not null"`
	Title         string                 `gorm:"column:title;not null"`
	Body          string                 `gorm:"column:body;not null"`
	Data          json.RawMessage        `gorm:"column:data;type:jsonb"`
	ReadAt        *time.Time             `gorm:"column:read_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
