package loads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maderasur/trozasgo/internal/apperr"
	"github.com/maderasur/trozasgo/internal/catalog"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/storage"
	"github.com/maderasur/trozasgo/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service owns the load lifecycle: creation, per-bank tallying, bank closure
// and load closure. Every operation takes the caller id explicitly and scopes
// its queries to loads owned by that caller.
type Service struct {
	db    *gorm.DB
	store storage.BlobStore
}

// NewService creates the load service.
func NewService(db *gorm.DB, store storage.BlobStore) *Service {
	return &Service{db: db, store: store}
}

// CreateInput carries the fields of a new load header.
type CreateInput struct {
	Plate       string
	DriverID    uint
	TransportID uint
	Notes       string
}

// Combination is one (diameter, length) tally line submitted for a bank.
type Combination struct {
	DiameterCM int     `json:"diameterCm"`
	LengthM    float64 `json:"lengthM"`
	Quantity   int     `json:"quantity"`
}

// GPS is an optional coordinate fix captured at bank closure.
type GPS struct {
	Lat      *float64
	Lng      *float64
	Accuracy *float64
}

// BankTotals summarizes a bank after its tally was replaced.
type BankTotals struct {
	Bank         int `json:"bank"`
	BankTotal    int `json:"bankTotal"`
	LoadTotal    int `json:"loadTotal"`
	Combinations int `json:"combinations"`
}

// BankClosure summarizes a successful bank closure.
type BankClosure struct {
	Bank      int       `json:"bank"`
	BankTotal int       `json:"bankTotal"`
	ClosedAt  time.Time `json:"closedAt"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	HasGPS    bool      `json:"hasGps"`
}

// Create opens a new load for a truck visit. At most one ABIERTO load may
// exist per plate; the check runs inside the transaction and is backed by a
// partial unique index.
func (s *Service) Create(callerID uint, in CreateInput) (*models.Load, error) {
	plate := utils.NormalizePlate(in.Plate)
	if !utils.ValidPlate(plate) {
		return nil, apperr.ValidationFields("Validation failed", map[string][]string{
			"plate": {"Plate must match format AB1234 or ABCD12"},
		})
	}
	if len(in.Notes) > 500 {
		return nil, apperr.ValidationFields("Validation failed", map[string][]string{
			"notes": {"Notes must not exceed 500 characters"},
		})
	}

	var load *models.Load
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Driver must belong to the transport and both must be active
		var driver models.Driver
		err := tx.Joins("Transport").
			Where("drivers.id = ? AND drivers.transport_id = ? AND drivers.active = ?", in.DriverID, in.TransportID, true).
			First(&driver).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Validation("Driver does not belong to the selected transport company or is inactive")
		}
		if err != nil {
			return apperr.Internal("failed to look up driver", err)
		}
		if driver.Transport == nil || !driver.Transport.Active {
			return apperr.Validation("Transport company is inactive")
		}

		var open int64
		if err := lockForUpdate(tx).Model(&models.Load{}).
			Where("plate = ? AND status = ?", plate, models.LoadStatusOpen).
			Count(&open).Error; err != nil {
			return apperr.Internal("failed to check open loads", err)
		}
		if open > 0 {
			return apperr.Conflict("An open load already exists for this plate")
		}

		load = &models.Load{
			Plate:       plate,
			DriverID:    in.DriverID,
			TransportID: in.TransportID,
			StartedAt:   time.Now(),
			Status:      models.LoadStatusOpen,
			UserID:      callerID,
			Notes:       in.Notes,
			TotalLogs:   0,
		}
		if err := tx.Create(load).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("An open load already exists for this plate")
			}
			return apperr.Internal("failed to create load", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("Driver").Preload("Transport").First(load, load.ID)
	return load, nil
}

// ReplaceBankDetails swaps the whole tally of one open bank: existing rows of
// the (load, bank) pair are deleted and one row per non-zero combination is
// inserted, then the denormalized total is recomputed.
func (s *Service) ReplaceBankDetails(callerID, loadID uint, bank int, combos []Combination) (*BankTotals, error) {
	if err := validateBankInput(bank, combos); err != nil {
		return nil, err
	}

	totals := &BankTotals{Bank: bank}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		load, err := s.findOwned(tx, loadID, callerID, true)
		if err != nil {
			return err
		}
		if !load.IsOpen() {
			return apperr.State("Cannot modify a closed load")
		}

		var closed int64
		if err := tx.Model(&models.LoadDetail{}).
			Where("load_id = ? AND bank = ? AND bank_closed = ?", loadID, bank, true).
			Count(&closed).Error; err != nil {
			return apperr.Internal("failed to check bank state", err)
		}
		if closed > 0 {
			return apperr.State("Cannot modify a closed bank")
		}

		if err := tx.Where("load_id = ? AND bank = ?", loadID, bank).
			Delete(&models.LoadDetail{}).Error; err != nil {
			return apperr.Internal("failed to clear bank", err)
		}

		now := time.Now()
		for _, c := range combos {
			if c.Quantity == 0 {
				continue
			}
			row := models.LoadDetail{
				LoadID:     loadID,
				Bank:       bank,
				DiameterCM: c.DiameterCM,
				LengthM:    c.LengthM,
				Quantity:   c.Quantity,
				BankClosed: false,
				CreatedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return apperr.Internal("failed to insert tally line", err)
			}
			totals.BankTotal += c.Quantity
			totals.Combinations++
		}

		total, err := recomputeTotal(tx, loadID)
		if err != nil {
			return err
		}
		totals.LoadTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// RecalculateTotal recomputes and persists the load total from its details.
// Safe to call at any time; recomputing twice yields the same value.
func (s *Service) RecalculateTotal(callerID, loadID uint) (int, error) {
	var total int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findOwned(tx, loadID, callerID, true); err != nil {
			return err
		}
		var err error
		total, err = recomputeTotal(tx, loadID)
		return err
	})
	return total, err
}

// CloseBank performs the one-shot closure of a bank: photo stored first, then
// closed flag, timestamp, photo path, GPS and notes set on every row of the
// (load, bank) pair in one conditional update. A second closure attempt, even
// a concurrent one, observes a state error.
func (s *Service) CloseBank(callerID, loadID uint, bank int, photo []byte, photoExt string, gps GPS, notes string) (*BankClosure, error) {
	if !catalog.ValidBank(bank) {
		return nil, apperr.Validation(fmt.Sprintf("Bank number must be between 1 and %d", catalog.MaxBanks))
	}
	if err := validateGPS(gps); err != nil {
		return nil, err
	}
	if len(notes) > 300 {
		return nil, apperr.Validation("Bank notes must not exceed 300 characters")
	}

	closure := &BankClosure{Bank: bank}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		load, err := s.findOwned(tx, loadID, callerID, true)
		if err != nil {
			return err
		}
		if !load.IsOpen() {
			return apperr.State("Cannot close a bank of a closed load")
		}

		var alreadyClosed int64
		if err := tx.Model(&models.LoadDetail{}).
			Where("load_id = ? AND bank = ? AND bank_closed = ?", loadID, bank, true).
			Count(&alreadyClosed).Error; err != nil {
			return apperr.Internal("failed to check bank state", err)
		}
		if alreadyClosed > 0 {
			return apperr.State("Bank is already closed")
		}

		bankTotal, err := bankQuantity(tx, loadID, bank)
		if err != nil {
			return err
		}
		if bankTotal == 0 {
			return apperr.State("Cannot close a bank without logs")
		}
		closure.BankTotal = bankTotal

		// Blob write happens before the row update; a blob orphaned by a
		// later rollback is never referenced and may be garbage-collected
		// externally.
		var photoPath *string
		if len(photo) > 0 {
			name := photoName(loadID, bank, photoExt)
			p, err := s.store.Store(photo, name)
			if err != nil {
				return apperr.Storage("failed to store bank photo", err)
			}
			photoPath = &p
			closure.PhotoURL = s.store.URLFor(p)
		}

		now := time.Now()
		res := tx.Model(&models.LoadDetail{}).
			Where("load_id = ? AND bank = ? AND bank_closed = ?", loadID, bank, false).
			Updates(map[string]interface{}{
				"bank_closed":    true,
				"bank_closed_at": now,
				"photo_path":     photoPath,
				"gps_lat":        gps.Lat,
				"gps_lng":        gps.Lng,
				"gps_accuracy":   gps.Accuracy,
				"bank_notes":     notes,
			})
		if res.Error != nil {
			return apperr.Internal("failed to close bank", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost a race with a concurrent closure
			return apperr.State("Bank is already closed")
		}

		closure.ClosedAt = now
		closure.HasGPS = gps.Lat != nil && gps.Lng != nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closure, nil
}

// AttachBankPhoto replaces the photo reference (and optionally the GPS fix)
// on an existing bank. Used by clients that closed a bank on a flaky network
// and upload the photo afterwards.
func (s *Service) AttachBankPhoto(callerID, loadID uint, bank int, photo []byte, photoExt string, gps GPS) (string, error) {
	if !catalog.ValidBank(bank) {
		return "", apperr.Validation(fmt.Sprintf("Bank number must be between 1 and %d", catalog.MaxBanks))
	}
	if len(photo) == 0 {
		return "", apperr.Validation("Photo is required")
	}
	if err := validateGPS(gps); err != nil {
		return "", err
	}

	var url string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.findOwned(tx, loadID, callerID, true); err != nil {
			return err
		}

		p, err := s.store.Store(photo, photoName(loadID, bank, photoExt))
		if err != nil {
			return apperr.Storage("failed to store bank photo", err)
		}

		updates := map[string]interface{}{"photo_path": p}
		if gps.Lat != nil && gps.Lng != nil {
			updates["gps_lat"] = gps.Lat
			updates["gps_lng"] = gps.Lng
		}

		res := tx.Model(&models.LoadDetail{}).
			Where("load_id = ? AND bank = ?", loadID, bank).
			Updates(updates)
		if res.Error != nil {
			return apperr.Internal("failed to attach photo", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("No tally lines found for this bank")
		}

		url = s.store.URLFor(p)
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// CloseLoad is the terminal transition of a load. It requires at least one
// closed bank and snapshots the final total; nothing reopens a closed load.
func (s *Service) CloseLoad(callerID, loadID uint) (*models.Load, error) {
	var load *models.Load
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		load, err = s.findOwned(tx, loadID, callerID, true)
		if err != nil {
			return err
		}
		if !load.IsOpen() {
			return apperr.State("Load is already closed")
		}

		closedBanks, err := closedBankCount(tx, loadID)
		if err != nil {
			return err
		}
		if closedBanks == 0 {
			return apperr.State("At least one bank must be closed before closing the load")
		}

		total, err := sumQuantities(tx, loadID)
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Load{}).
			Where("id = ? AND status = ?", loadID, models.LoadStatusOpen).
			Updates(map[string]interface{}{
				"status":     models.LoadStatusClosed,
				"closed_at":  now,
				"total_logs": total,
			})
		if res.Error != nil {
			return apperr.Internal("failed to close load", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.State("Load is already closed")
		}

		load.Status = models.LoadStatusClosed
		load.ClosedAt = &now
		load.TotalLogs = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return load, nil
}

// findOwned fetches a load scoped to its owner. All read and write paths go
// through this so ownership checks cannot be forgotten.
func (s *Service) findOwned(tx *gorm.DB, loadID, callerID uint, lock bool) (*models.Load, error) {
	q := tx
	if lock {
		q = lockForUpdate(tx)
	}
	var load models.Load
	err := q.Where("id = ? AND user_id = ?", loadID, callerID).First(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Load not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch load", err)
	}
	return &load, nil
}

func validateBankInput(bank int, combos []Combination) error {
	fields := map[string][]string{}
	if !catalog.ValidBank(bank) {
		fields["bank"] = append(fields["bank"], fmt.Sprintf("Bank number must be between 1 and %d", catalog.MaxBanks))
	}
	if len(combos) == 0 {
		fields["logs"] = append(fields["logs"], "At least one combination is required")
	}
	seen := map[string]bool{}
	for i, c := range combos {
		key := fmt.Sprintf("logs[%d]", i)
		if !catalog.ValidDiameter(c.DiameterCM) {
			fields[key+".diameterCm"] = append(fields[key+".diameterCm"], "Diameter is not in the accepted set")
		}
		if !catalog.ValidLength(c.LengthM) {
			fields[key+".lengthM"] = append(fields[key+".lengthM"], "Length is not in the accepted set")
		}
		if !catalog.ValidQuantity(c.Quantity) {
			fields[key+".quantity"] = append(fields[key+".quantity"],
				fmt.Sprintf("Quantity must be between 0 and %d", catalog.MaxLogsPerCombination))
		}
		comboKey := fmt.Sprintf("%d_%.2f", c.DiameterCM, c.LengthM)
		if seen[comboKey] {
			fields[key] = append(fields[key], "Duplicate (diameter, length) combination")
		}
		seen[comboKey] = true
	}
	if len(fields) > 0 {
		return apperr.ValidationFields("Validation failed", fields)
	}
	return nil
}

func validateGPS(gps GPS) error {
	fields := map[string][]string{}
	if gps.Lat != nil && (*gps.Lat < -90 || *gps.Lat > 90) {
		fields["gpsLat"] = append(fields["gpsLat"], "Latitude must be between -90 and 90")
	}
	if gps.Lng != nil && (*gps.Lng < -180 || *gps.Lng > 180) {
		fields["gpsLng"] = append(fields["gpsLng"], "Longitude must be between -180 and 180")
	}
	if gps.Accuracy != nil && *gps.Accuracy < 0 {
		fields["gpsAccuracy"] = append(fields["gpsAccuracy"], "Accuracy must not be negative")
	}
	if len(fields) > 0 {
		return apperr.ValidationFields("Validation failed", fields)
	}
	return nil
}

func recomputeTotal(tx *gorm.DB, loadID uint) (int, error) {
	total, err := sumQuantities(tx, loadID)
	if err != nil {
		return 0, err
	}
	if err := tx.Model(&models.Load{}).Where("id = ?", loadID).
		Update("total_logs", total).Error; err != nil {
		return 0, apperr.Internal("failed to persist total", err)
	}
	return total, nil
}

func sumQuantities(tx *gorm.DB, loadID uint) (int, error) {
	var total int64
	err := tx.Model(&models.LoadDetail{}).
		Where("load_id = ?", loadID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, apperr.Internal("failed to sum quantities", err)
	}
	return int(total), nil
}

func bankQuantity(tx *gorm.DB, loadID uint, bank int) (int, error) {
	var total int64
	err := tx.Model(&models.LoadDetail{}).
		Where("load_id = ? AND bank = ?", loadID, bank).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, apperr.Internal("failed to sum bank quantities", err)
	}
	return int(total), nil
}

func closedBankCount(tx *gorm.DB, loadID uint) (int, error) {
	var count int64
	err := tx.Model(&models.LoadDetail{}).
		Where("load_id = ? AND bank_closed = ?", loadID, true).
		Distinct("bank").
		Count(&count).Error
	if err != nil {
		return 0, apperr.Internal("failed to count closed banks", err)
	}
	return int(count), nil
}

func photoName(loadID uint, bank int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("banco_%d_%d_%d.%s", loadID, bank, time.Now().Unix(), ext)
}

// lockForUpdate applies a row lock on engines that support it. SQLite (used
// by the test suite) serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
