package model

import "time"

// DraftRecord is a persisted draft envelope in the Postgres-backed state store.
// Payload holds the serialized envelope verbatim; the store never inspects it.
type DraftRecord struct {
	Key       string     `gorm:"type:varchar(512);primaryKey" json:"key"`
	Payload   []byte     `gorm:"type:bytea;not null" json:"-"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (DraftRecord) TableName() string { return "draft_records" }
