package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChatEvent is a persisted journal entry for a completed dispatch.
type ChatEvent struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"size:64;index;not null" json:"name"`
	Payload    datatypes.JSON `json:"payload"`
	RecordedAt time.Time      `gorm:"index;not null" json:"recordedAt"`
}
