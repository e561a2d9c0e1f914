package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/maderasur/trozasgo/internal/apperr"
	"github.com/maderasur/trozasgo/internal/catalog"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/maderasur/trozasgo/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine reconciles offline-captured loads with the server state. A whole
// batch runs in one transaction with a savepoint per item, so a bad item
// rolls back alone while the rest of the batch lands.
type Engine struct {
	db    *gorm.DB
	loads *loads.Service
}

// NewEngine creates the sync engine.
func NewEngine(db *gorm.DB, loadSvc *loads.Service) *Engine {
	return &Engine{db: db, loads: loadSvc}
}

// ProcessBatch ingests an upload batch for the caller. Each item resolves to
// exactly one outcome: success (created, device gets the server id),
// duplicate (an identical visit already exists, device gets the existing id),
// or error (item rolled back, message explains why). The batch itself only
// fails on storage-level errors.
func (e *Engine) ProcessBatch(callerID uint, batch UploadBatch) (*BatchResult, error) {
	if len(batch.Loads) == 0 {
		return nil, apperr.Validation("Batch must contain at least one load")
	}

	result := &BatchResult{
		BatchID: uuid.New().String(),
		Items:   make([]ItemResult, 0, len(batch.Loads)),
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		for i, payload := range batch.Loads {
			item := e.processItem(tx, callerID, batch.DeviceID, i, payload)
			result.Items = append(result.Items, item)
			result.Summary.Total++
			switch item.Outcome {
			case OutcomeSuccess:
				result.Summary.Success++
			case OutcomeDuplicate:
				result.Summary.Duplicates++
			default:
				result.Summary.Errors++
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage("failed to process sync batch", err)
	}

	log.Printf("Sync batch %s for user %d: %d total, %d success, %d duplicates, %d errors",
		result.BatchID, callerID, result.Summary.Total, result.Summary.Success,
		result.Summary.Duplicates, result.Summary.Errors)
	return result, nil
}

// processItem handles one payload inside the batch transaction. The audit
// entry is created before the savepoint so a rolled-back item still leaves
// its ERROR trace.
func (e *Engine) processItem(tx *gorm.DB, callerID uint, deviceID string, idx int, p LoadPayload) ItemResult {
	item := ItemResult{LocalID: p.LocalID}

	entry := &models.SyncLogEntry{
		UserID:     callerID,
		DeviceID:   deviceID,
		SyncType:   models.SyncTypeUpload,
		EntityType: models.SyncEntityLoad,
		Status:     models.SyncStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := tx.Create(entry).Error; err != nil {
		item.Outcome = OutcomeError
		item.Message = "failed to record sync entry"
		return item
	}

	plate := utils.NormalizePlate(p.Plate)

	// Duplicate check sees rows inserted by earlier items of this same
	// batch: the query runs inside the shared transaction.
	var existing models.Load
	err := tx.Where("plate = ? AND user_id = ? AND started_at = ?", plate, callerID, p.StartedAt).
		First(&existing).Error
	if err == nil {
		item.Outcome = OutcomeDuplicate
		item.ServerID = existing.ID
		item.Message = "Load already synced"
		resolveEntry(tx, entry, models.SyncStatusSuccess, existing.ID, map[string]interface{}{
			"localId": p.LocalID, "plate": plate, "duplicate": true,
		})
		return item
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		item.Outcome = OutcomeError
		item.Message = "failed to check for duplicates"
		resolveEntryError(tx, entry, item.Message)
		return item
	}

	sp := fmt.Sprintf("sync_item_%d", idx)
	tx.SavePoint(sp)

	serverID, err := e.insertLoad(tx, callerID, plate, p)
	if err != nil {
		tx.RollbackTo(sp)
		item.Outcome = OutcomeError
		item.Message = err.Error()
		resolveEntryError(tx, entry, item.Message)
		return item
	}

	item.Outcome = OutcomeSuccess
	item.ServerID = serverID
	resolveEntry(tx, entry, models.SyncStatusSuccess, serverID, map[string]interface{}{
		"localId": p.LocalID, "plate": plate,
	})
	return item
}

// insertLoad validates and persists one uploaded load with its details.
func (e *Engine) insertLoad(tx *gorm.DB, callerID uint, plate string, p LoadPayload) (uint, error) {
	if !utils.ValidPlate(plate) {
		return 0, fmt.Errorf("invalid plate %q", p.Plate)
	}
	if p.Status != models.LoadStatusOpen && p.Status != models.LoadStatusClosed {
		return 0, fmt.Errorf("invalid status %q", p.Status)
	}
	if p.StartedAt.IsZero() {
		return 0, errors.New("startedAt is required")
	}

	var driver models.Driver
	err := tx.Where("id = ? AND transport_id = ?", p.DriverID, p.TransportID).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("driver %d does not belong to transport %d", p.DriverID, p.TransportID)
	}
	if err != nil {
		return 0, errors.New("failed to look up driver")
	}

	total := 0
	seen := make(map[string]bool, len(p.Details))
	for _, d := range p.Details {
		if !catalog.ValidBank(d.Bank) {
			return 0, fmt.Errorf("invalid bank %d", d.Bank)
		}
		if !catalog.ValidDiameter(d.DiameterCM) {
			return 0, fmt.Errorf("invalid diameter %d", d.DiameterCM)
		}
		if !catalog.ValidLength(d.LengthM) {
			return 0, fmt.Errorf("invalid length %.2f", d.LengthM)
		}
		if !catalog.ValidQuantity(d.Quantity) {
			return 0, fmt.Errorf("invalid quantity %d", d.Quantity)
		}
		combo := fmt.Sprintf("%d_%d_%.2f", d.Bank, d.DiameterCM, d.LengthM)
		if seen[combo] {
			return 0, fmt.Errorf("duplicate combination %dx%.2f in bank %d", d.DiameterCM, d.LengthM, d.Bank)
		}
		seen[combo] = true
		total += d.Quantity
	}

	load := models.Load{
		Plate:       plate,
		DriverID:    p.DriverID,
		TransportID: p.TransportID,
		StartedAt:   p.StartedAt,
		ClosedAt:    p.ClosedAt,
		Status:      p.Status,
		UserID:      callerID,
		Notes:       p.Notes,
		TotalLogs:   total,
	}
	if load.Status == models.LoadStatusClosed && load.ClosedAt == nil {
		now := time.Now()
		load.ClosedAt = &now
	}
	if err := tx.Create(&load).Error; err != nil {
		return 0, errors.New("failed to create load")
	}

	for _, d := range p.Details {
		if d.Quantity == 0 {
			continue
		}
		row := models.LoadDetail{
			LoadID:       load.ID,
			Bank:         d.Bank,
			DiameterCM:   d.DiameterCM,
			LengthM:      d.LengthM,
			Quantity:     d.Quantity,
			BankClosed:   d.BankClosed,
			BankClosedAt: d.BankClosedAt,
			GPSLat:       d.GPSLat,
			GPSLng:       d.GPSLng,
			GPSAccuracy:  d.GPSAccuracy,
			BankNotes:    d.BankNotes,
			CreatedAt:    time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, errors.New("failed to create tally line")
		}
	}

	return load.ID, nil
}

// AttachPhoto stores a bank photo uploaded after the load itself synced.
// The caller treats failures as non-fatal; either way the attempt is audited.
func (e *Engine) AttachPhoto(callerID, loadID uint, bank int, photo []byte, photoExt string, deviceID string, gps loads.GPS) (string, error) {
	url, err := e.loads.AttachBankPhoto(callerID, loadID, bank, photo, photoExt, gps)

	entry := &models.SyncLogEntry{
		UserID:     callerID,
		DeviceID:   deviceID,
		SyncType:   models.SyncTypeUpload,
		EntityType: models.SyncEntityPhoto,
		EntityID:   loadID,
		Status:     models.SyncStatusSuccess,
		CreatedAt:  time.Now(),
	}
	now := time.Now()
	entry.ProcessedAt = &now
	if err != nil {
		msg := err.Error()
		entry.Status = models.SyncStatusError
		entry.ErrorMessage = &msg
		log.Printf("Photo attach failed for load %d bank %d: %v", loadID, bank, err)
	}
	if meta, merr := json.Marshal(map[string]interface{}{"bank": bank}); merr == nil {
		entry.Metadata = datatypes.JSON(meta)
	}
	if lerr := e.db.Create(entry).Error; lerr != nil {
		log.Printf("Failed to record photo sync entry: %v", lerr)
	}

	return url, err
}

// Updates returns what changed on the server since the given instant: the
// full active fleet (always sent whole, devices replace their catalog), the
// capture catalog, and the caller's load headers touched after the cutoff.
func (e *Engine) Updates(callerID uint, since time.Time) (*ServerUpdates, error) {
	out := &ServerUpdates{
		Since:      since,
		ServerTime: time.Now().UTC(),
		Catalog: CatalogDTO{
			Diameters:             catalog.Diameters(),
			Lengths:               catalog.Lengths(),
			MaxBanks:              catalog.MaxBanks,
			MaxLogsPerCombination: catalog.MaxLogsPerCombination,
		},
		Transports: []TransportDTO{},
		Loads:      []LoadChange{},
	}

	var transports []models.Transport
	err := e.db.Preload("Drivers", "active = ?", true).
		Where("active = ?", true).
		Order("name ASC").
		Find(&transports).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch transports", err)
	}
	for _, t := range transports {
		dto := TransportDTO{ID: t.ID, Name: t.Name, RUT: utils.FormatRut(t.RUT), Drivers: []DriverDTO{}}
		for _, d := range t.Drivers {
			dto.Drivers = append(dto.Drivers, DriverDTO{
				ID:    d.ID,
				Name:  d.Name,
				RUT:   utils.FormatRut(d.RUT),
				Phone: utils.FormatPhone(d.Phone),
			})
		}
		out.Transports = append(out.Transports, dto)
	}

	var changed []models.Load
	err = e.db.Where("user_id = ? AND updated_at > ?", callerID, since).
		Order("updated_at ASC").
		Find(&changed).Error
	if err != nil {
		return nil, apperr.Internal("failed to fetch load changes", err)
	}
	for _, l := range changed {
		out.Loads = append(out.Loads, LoadChange{
			ID:        l.ID,
			Plate:     l.Plate,
			Status:    l.Status,
			TotalLogs: l.TotalLogs,
			StartedAt: l.StartedAt,
			ClosedAt:  l.ClosedAt,
			UpdatedAt: l.UpdatedAt,
		})
	}

	return out, nil
}

