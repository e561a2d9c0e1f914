package loads

import (
	"errors"
	"fmt"
	"time"

	"github.com/maderasur/trozasgo/internal/apperr"
	"github.com/maderasur/trozasgo/internal/catalog"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/utils"
	"gorm.io/gorm"
)

// LoadView is the enriched read model of a single load: the header, its
// detail rows grouped per bank, and per-diameter / per-length rollups.
type LoadView struct {
	Load           *models.Load      `json:"load"`
	DriverName     string            `json:"driverName"`
	TransportName  string            `json:"transportName"`
	TransportRUT   string            `json:"transportRut"`
	CalcTotal      int               `json:"calcTotal"`
	ClosedBanks    []int             `json:"closedBanks"`
	OpenBanks      []int             `json:"openBanks"`
	Banks          []BankView        `json:"banks"`
	DiameterTotals map[int]int       `json:"diameterTotals"`
	LengthTotals   map[string]int    `json:"lengthTotals"`
	Details        []DetailView      `json:"details"`
}

// BankView groups the detail rows of one bank.
type BankView struct {
	Bank     int          `json:"bank"`
	Total    int          `json:"total"`
	Closed   bool         `json:"closed"`
	ClosedAt *time.Time   `json:"closedAt,omitempty"`
	PhotoURL string       `json:"photoUrl,omitempty"`
	GPSLat   *float64     `json:"gpsLat,omitempty"`
	GPSLng   *float64     `json:"gpsLng,omitempty"`
	Notes    string       `json:"notes,omitempty"`
	Lines    []DetailView `json:"lines"`
}

// DetailView is one tally line as presented to clients.
type DetailView struct {
	ID         uint    `json:"id"`
	Bank       int     `json:"bank"`
	DiameterCM int     `json:"diameterCm"`
	LengthM    float64 `json:"lengthM"`
	Quantity   int     `json:"quantity"`
	BankClosed bool    `json:"bankClosed"`
}

// ListFilter narrows and pages the load listing.
type ListFilter struct {
	Search   string
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PerPage  int
}

// ListResult is one page of loads plus pagination metadata.
type ListResult struct {
	Loads   []models.Load `json:"loads"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"perPage"`
}

// Get returns the full read model of one owned load.
func (s *Service) Get(callerID, loadID uint) (*LoadView, error) {
	var load models.Load
	err := s.db.Preload("Driver").Preload("Transport").
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Order("bank ASC, diameter_cm ASC, length_m ASC")
		}).
		Where("id = ? AND user_id = ?", loadID, callerID).
		First(&load).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Load not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch load", err)
	}

	view := &LoadView{
		Load:           &load,
		ClosedBanks:    []int{},
		OpenBanks:      []int{},
		DiameterTotals: map[int]int{},
		LengthTotals:   map[string]int{},
		Details:        []DetailView{},
	}
	if load.Driver != nil {
		view.DriverName = load.Driver.Name
	}
	if load.Transport != nil {
		view.TransportName = load.Transport.Name
		view.TransportRUT = utils.FormatRut(load.Transport.RUT)
	}

	byBank := map[int]*BankView{}
	for _, d := range load.Details {
		dv := DetailView{
			ID:         d.ID,
			Bank:       d.Bank,
			DiameterCM: d.DiameterCM,
			LengthM:    d.LengthM,
			Quantity:   d.Quantity,
			BankClosed: d.BankClosed,
		}
		view.Details = append(view.Details, dv)
		view.CalcTotal += d.Quantity
		view.DiameterTotals[d.DiameterCM] += d.Quantity
		view.LengthTotals[fmt.Sprintf("%.2f", d.LengthM)] += d.Quantity

		bv, ok := byBank[d.Bank]
		if !ok {
			bv = &BankView{Bank: d.Bank}
			byBank[d.Bank] = bv
		}
		bv.Total += d.Quantity
		bv.Lines = append(bv.Lines, dv)
		if d.BankClosed {
			bv.Closed = true
			bv.ClosedAt = d.BankClosedAt
			bv.Notes = d.BankNotes
			bv.GPSLat = d.GPSLat
			bv.GPSLng = d.GPSLng
			if d.PhotoPath != nil {
				bv.PhotoURL = s.store.URLFor(*d.PhotoPath)
			}
		}
	}

	for bank := 1; bank <= catalog.MaxBanks; bank++ {
		bv, ok := byBank[bank]
		if !ok {
			continue
		}
		view.Banks = append(view.Banks, *bv)
		if bv.Closed {
			view.ClosedBanks = append(view.ClosedBanks, bank)
		} else {
			view.OpenBanks = append(view.OpenBanks, bank)
		}
	}

	return view, nil
}

// List returns the caller's loads, newest first, filtered and paged.
func (s *Service) List(callerID uint, f ListFilter) (*ListResult, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	q := s.db.Model(&models.Load{}).Where("user_id = ?", callerID)
	if f.Status == models.LoadStatusOpen || f.Status == models.LoadStatusClosed {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		q = q.Where("plate LIKE ?", "%"+utils.NormalizePlate(f.Search)+"%")
	}
	if f.DateFrom != nil {
		q = q.Where("started_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("started_at < ?", f.DateTo.Add(24*time.Hour))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperr.Internal("failed to count loads", err)
	}

	var rows []models.Load
	err := q.Preload("Driver").Preload("Transport").
		Order("started_at DESC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, apperr.Internal("failed to list loads", err)
	}

	return &ListResult{Loads: rows, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}
