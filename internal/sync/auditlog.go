package sync

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/maderasur/trozasgo/internal/apperr"
	"github.com/maderasur/trozasgo/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// The audit log is append-only: entries are created PENDING and resolved to
// a terminal status inside the same operation. A PENDING entry observed at
// rest means that operation was interrupted mid-flight.

// Status summarizes the caller's sync history: pending entries, errors over
// the last 24 hours, successes over the last 7 days and the last successful
// sync.
func (e *Engine) Status(callerID uint) (*Stats, error) {
	stats := &Stats{}
	now := time.Now()
	base := func() *gorm.DB {
		return e.db.Model(&models.SyncLogEntry{}).Where("user_id = ?", callerID)
	}
	if err := base().Where("status = ?", models.SyncStatusPending).
		Count(&stats.Pending).Error; err != nil {
		return nil, apperr.Internal("failed to count sync entries", err)
	}
	if err := base().Where("status = ? AND created_at > ?", models.SyncStatusError, now.Add(-24*time.Hour)).
		Count(&stats.RecentErrors).Error; err != nil {
		return nil, apperr.Internal("failed to count sync entries", err)
	}
	if err := base().Where("status = ? AND created_at > ?", models.SyncStatusSuccess, now.AddDate(0, 0, -7)).
		Count(&stats.WeekSuccess).Error; err != nil {
		return nil, apperr.Internal("failed to count sync entries", err)
	}

	var last models.SyncLogEntry
	err := base().Where("status = ?", models.SyncStatusSuccess).
		Order("created_at DESC").
		First(&last).Error
	if err == nil {
		stats.LastSyncAt = &last.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal("failed to fetch last sync", err)
	}
	return stats, nil
}

// History returns the caller's most recent sync entries, newest first.
func (e *Engine) History(callerID uint, limit int) ([]models.SyncLogEntry, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var entries []models.SyncLogEntry
	err := e.db.Where("user_id = ?", callerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch sync history", err)
	}
	return entries, nil
}

// PurgeOlderThan deletes the caller's resolved audit entries past the
// retention window and reports how many were removed. Pending entries are
// never purged, and other users' history is untouched.
func (e *Engine) PurgeOlderThan(callerID uint, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, apperr.Validation("Retention must be at least one day")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := e.db.Where("user_id = ? AND created_at < ? AND status <> ?", callerID, cutoff, models.SyncStatusPending).
		Delete(&models.SyncLogEntry{})
	if res.Error != nil {
		return 0, apperr.Internal("failed to purge sync log", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Purged %d sync log entries for user %d older than %d days", res.RowsAffected, callerID, retentionDays)
	}
	return res.RowsAffected, nil
}

// PurgeAllOlderThan is the maintenance variant that sweeps every user's
// resolved entries. It runs from the daily background job, never from a
// request handler.
func (e *Engine) PurgeAllOlderThan(retentionDays int) (int64, error) {
	if retentionDays < 1 {
		return 0, apperr.Validation("Retention must be at least one day")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := e.db.Where("created_at < ? AND status <> ?", cutoff, models.SyncStatusPending).
		Delete(&models.SyncLogEntry{})
	if res.Error != nil {
		return 0, apperr.Internal("failed to purge sync log", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("Purged %d sync log entries older than %d days", res.RowsAffected, retentionDays)
	}
	return res.RowsAffected, nil
}

func resolveEntry(tx *gorm.DB, entry *models.SyncLogEntry, status string, entityID uint, meta map[string]interface{}) {
	now := time.Now()
	entry.Status = status
	entry.EntityID = entityID
	entry.ProcessedAt = &now
	if raw, err := json.Marshal(meta); err == nil {
		entry.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Save(entry).Error; err != nil {
		log.Printf("Failed to resolve sync entry %d: %v", entry.ID, err)
	}
}

func resolveEntryError(tx *gorm.DB, entry *models.SyncLogEntry, msg string) {
	now := time.Now()
	entry.Status = models.SyncStatusError
	entry.ErrorMessage = &msg
	entry.ProcessedAt = &now
	if err := tx.Save(entry).Error; err != nil {
		log.Printf("Failed to resolve sync entry %d: %v", entry.ID, err)
	}
}
