package models

import "time"

// StoredValue is one persisted key/value slot of the console's local storage.
type StoredValue struct {
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StoredValue) TableName() string {
	return "local_storage"
}
