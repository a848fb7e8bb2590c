package models

import "time"

const SettingShippingCharges = "shipping_charges"

// Setting is one entry of the append-only settings log. The current value of a key is its
// highest Version.
type Setting struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Key       string    `json:"key" gorm:"type:varchar(100);not null;uniqueIndex:idx_setting_version,priority:1"`
	Value     string    `json:"value" gorm:"type:varchar(255);not null"`
	Version   int       `json:"version" gorm:"not null;uniqueIndex:idx_setting_version,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}
