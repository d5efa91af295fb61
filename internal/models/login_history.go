package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

type LoginHistory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_login_history_user_at" json:"-"`
	LoginMethod string    `gorm:"size:20;not null" json:"login_method"`
	IPAddress   string    `gorm:"size:45" json:"ip_address"`
	DeviceType  string    `gorm:"size:20" json:"device_type"`
	UserAgent   string    `gorm:"type:text" json:"user_agent"`
	LoginAt     time.Time `gorm:"not null;index:idx_login_history_user_at" json:"login_at"`
}

func (LoginHistory) TableName() string { return "login_history" }

func (l *LoginHistory) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
