package handlers

import (
	"net/http"
	"strings"

	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/utils"
)

// listFleet returns the active transport companies with their active
// drivers, RUTs and phones formatted for display.
func (r *Router) listFleet(w http.ResponseWriter, req *http.Request) {
	var transports []models.Transport
	err := r.db.Preload("Drivers", "active = ?", true).
		Where("active = ?", true).
		Order("name ASC").
		Find(&transports).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch fleet")
		return
	}

	out := make([]map[string]interface{}, 0, len(transports))
	for _, t := range transports {
		drivers := make([]map[string]interface{}, 0, len(t.Drivers))
		for _, d := range t.Drivers {
			drivers = append(drivers, map[string]interface{}{
				"id":    d.ID,
				"name":  d.Name,
				"rut":   utils.FormatRut(d.RUT),
				"phone": utils.FormatPhone(d.Phone),
			})
		}
		out = append(out, map[string]interface{}{
			"id":      t.ID,
			"name":    t.Name,
			"rut":     utils.FormatRut(t.RUT),
			"drivers": drivers,
		})
	}
	respondData(w, http.StatusOK, out)
}

// searchTransports matches active transports by name or RUT.
func (r *Router) searchTransports(w http.ResponseWriter, req *http.Request) {
	q := strings.TrimSpace(req.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	var transports []models.Transport
	err := r.db.Where("active = ?", true).
		Where("LOWER(name) LIKE ? OR rut LIKE ?", "%"+strings.ToLower(q)+"%", "%"+rutDigits(q)+"%").
		Order("name ASC").
		Find(&transports).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to search transports")
		return
	}

	out := make([]map[string]interface{}, 0, len(transports))
	for _, t := range transports {
		out = append(out, map[string]interface{}{
			"id":   t.ID,
			"name": t.Name,
			"rut":  utils.FormatRut(t.RUT),
		})
	}
	respondData(w, http.StatusOK, out)
}

// transportDrivers returns the active drivers of one transport.
func (r *Router) transportDrivers(w http.ResponseWriter, req *http.Request) {
	id := pathID(req, "id")

	var count int64
	r.db.Model(&models.Transport{}).Where("id = ? AND active = ?", id, true).Count(&count)
	if count == 0 {
		respondError(w, http.StatusNotFound, "Transport not found")
		return
	}

	var drivers []models.Driver
	err := r.db.Where("transport_id = ? AND active = ?", id, true).
		Order("name ASC").
		Find(&drivers).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch drivers")
		return
	}
	respondData(w, http.StatusOK, driverList(drivers))
}

// listDrivers returns every active driver across all transports.
func (r *Router) listDrivers(w http.ResponseWriter, req *http.Request) {
	var drivers []models.Driver
	err := r.db.Where("active = ?", true).Order("name ASC").Find(&drivers).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch drivers")
		return
	}
	respondData(w, http.StatusOK, driverList(drivers))
}

// searchDrivers matches active drivers by name or RUT.
func (r *Router) searchDrivers(w http.ResponseWriter, req *http.Request) {
	q := strings.TrimSpace(req.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "q is required")
		return
	}

	var drivers []models.Driver
	err := r.db.Where("active = ?", true).
		Where("LOWER(name) LIKE ? OR rut LIKE ?", "%"+strings.ToLower(q)+"%", "%"+rutDigits(q)+"%").
		Order("name ASC").
		Find(&drivers).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to search drivers")
		return
	}
	respondData(w, http.StatusOK, driverList(drivers))
}

func driverList(drivers []models.Driver) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, map[string]interface{}{
			"id":          d.ID,
			"name":        d.Name,
			"rut":         utils.FormatRut(d.RUT),
			"phone":       utils.FormatPhone(d.Phone),
			"transportId": d.TransportID,
		})
	}
	return out
}

// rutDigits strips RUT punctuation so "76.543.210-1" matches the stored
// "765432101". A query with no digits yields a token that matches nothing.
func rutDigits(q string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == 'k' || r == 'K' {
			return r
		}
		return -1
	}, q)
	if digits == "" {
		return "\x00"
	}
	return digits
}

// fleetHealth reports fleet registry counters for dashboards.
func (r *Router) fleetHealth(w http.ResponseWriter, req *http.Request) {
	var transports, drivers int64
	r.db.Model(&models.Transport{}).Where("active = ?", true).Count(&transports)
	r.db.Model(&models.Driver{}).Where("active = ?", true).Count(&drivers)

	respondData(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"activeTransports": transports,
		"activeDrivers":    drivers,
	})
}

// fleetSyncAll returns the whole fleet catalog in the shape devices cache
// for offline use. Inactive rows are included flagged so devices can stop
// offering them without losing historical references.
func (r *Router) fleetSyncAll(w http.ResponseWriter, req *http.Request) {
	var transports []models.Transport
	err := r.db.Preload("Drivers").Order("name ASC").Find(&transports).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch fleet")
		return
	}

	out := make([]map[string]interface{}, 0, len(transports))
	for _, t := range transports {
		drivers := make([]map[string]interface{}, 0, len(t.Drivers))
		for _, d := range t.Drivers {
			drivers = append(drivers, map[string]interface{}{
				"id":     d.ID,
				"name":   d.Name,
				"rut":    utils.FormatRut(d.RUT),
				"phone":  utils.FormatPhone(d.Phone),
				"active": d.Active,
			})
		}
		out = append(out, map[string]interface{}{
			"id":                t.ID,
			"name":              t.Name,
			"rut":               utils.FormatRut(t.RUT),
			"contactName":       t.ContactName,
			"contactPhone":      utils.FormatPhone(t.ContactPhone),
			"warehouseTransfer": t.WarehouseTransfer,
			"active":            t.Active,
			"drivers":           drivers,
		})
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"transports": out,
		"count":      len(out),
	})
}
