package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sync log enumerations. Values match the historical audit table so old and
// new entries stay queryable together.
const (
	SyncTypeUpload   = "UPLOAD"
	SyncTypeDownload = "DOWNLOAD"

	SyncEntityLoad  = "REGISTRO"
	SyncEntityPhoto = "FOTO"

	SyncStatusPending = "PENDING"
	SyncStatusSuccess = "SUCCESS"
	SyncStatusError   = "ERROR"
)

// SyncLogEntry is one append-only audit row per attempted entity sync. It is
// created as PENDING and resolved to a terminal status within the same
// operation; a PENDING row observed at rest means the sync was interrupted.
type SyncLogEntry struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index" json:"userId"`
	DeviceID     string         `gorm:"size:100;not null" json:"deviceId"`
	SyncType     string         `gorm:"size:10;not null" json:"syncType"`
	EntityType   string         `gorm:"size:10;not null" json:"entityType"`
	EntityID     uint           `json:"entityId"`
	Status       string         `gorm:"size:10;not null;index" json:"status"`
	ErrorMessage *string        `gorm:"type:text" json:"errorMessage,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// TableName specifies the table name
func (SyncLogEntry) TableName() string {
	return "sync_log"
}

// Resolved reports whether the entry reached a terminal status.
func (e *SyncLogEntry) Resolved() bool {
	return e.Status != SyncStatusPending
}
