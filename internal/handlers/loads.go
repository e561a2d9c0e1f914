package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/maderasur/trozasgo/internal/middleware"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/maderasur/trozasgo/internal/services/ticket"
	ws "github.com/maderasur/trozasgo/internal/websocket"
)

const maxPhotoSize = 10 << 20 // 10MB

// CreateLoadRequest is the payload to open a new load.
type CreateLoadRequest struct {
	Plate       string `json:"plate" validate:"required"`
	DriverID    uint   `json:"driverId" validate:"required"`
	TransportID uint   `json:"transportId" validate:"required"`
	Notes       string `json:"notes" validate:"max=500"`
}

// ReplaceBankRequest is the full tally of one bank.
type ReplaceBankRequest struct {
	Logs []loads.Combination `json:"logs" validate:"required,min=1"`
}

func (r *Router) listLoads(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	q := req.URL.Query()
	filter := loads.ListFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	if from := q.Get("dateFrom"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.DateFrom = &t
		}
	}
	if to := q.Get("dateTo"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.DateTo = &t
		}
	}

	result, err := r.loads.List(userID, filter)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}

func (r *Router) createLoad(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	var in CreateLoadRequest
	if !r.decodeAndValidate(w, req, &in) {
		return
	}

	load, err := r.loads.Create(userID, loads.CreateInput{
		Plate:       in.Plate,
		DriverID:    in.DriverID,
		TransportID: in.TransportID,
		Notes:       in.Notes,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.hub.Broadcast(ws.EventLoadCreated, map[string]interface{}{
		"loadId": load.ID,
		"plate":  load.Plate,
	})
	respondMessage(w, http.StatusCreated, "Load created", load)
}

func (r *Router) getLoad(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")

	view, err := r.loads.Get(userID, loadID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, view)
}

func (r *Router) replaceBank(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")
	bank := int(pathID(req, "banco"))

	var in ReplaceBankRequest
	if !r.decodeAndValidate(w, req, &in) {
		return
	}

	totals, err := r.loads.ReplaceBankDetails(userID, loadID, bank, in.Logs)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Bank updated", totals)
}

func (r *Router) closeBank(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")
	bank := int(pathID(req, "banco"))

	photo, ext, err := readPhotoForm(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	closure, err := r.loads.CloseBank(userID, loadID, bank, photo, ext, gpsFromForm(req), req.FormValue("notas"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.hub.Broadcast(ws.EventBankClosed, map[string]interface{}{
		"loadId": loadID,
		"bank":   bank,
		"total":  closure.BankTotal,
	})
	respondMessage(w, http.StatusOK, "Bank closed", closure)
}

func (r *Router) uploadBankPhoto(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")
	bank := int(pathID(req, "banco"))

	photo, ext, err := readPhotoForm(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(photo) == 0 {
		respondError(w, http.StatusBadRequest, "Photo file is required")
		return
	}

	url, err := r.loads.AttachBankPhoto(userID, loadID, bank, photo, ext, gpsFromForm(req))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Photo stored", map[string]string{"photoUrl": url})
}

func (r *Router) recalculateLoad(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")

	total, err := r.loads.RecalculateTotal(userID, loadID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"totalLogs": total})
}

func (r *Router) closeLoad(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")

	load, err := r.loads.CloseLoad(userID, loadID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.hub.Broadcast(ws.EventLoadClosed, map[string]interface{}{
		"loadId": load.ID,
		"plate":  load.Plate,
		"total":  load.TotalLogs,
	})
	respondMessage(w, http.StatusOK, "Load closed", load)
}

func (r *Router) loadTicket(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)
	loadID := pathID(req, "id")

	view, err := r.loads.Get(userID, loadID)
	if err != nil {
		respondAppError(w, err)
		return
	}

	pdf, err := ticket.GenerateLoadTicket(view)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate ticket")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="carga_%d.pdf"`, loadID))
	w.Write(pdf)
}

// loadsHealth reports module-level counters for dashboards.
func (r *Router) loadsHealth(w http.ResponseWriter, req *http.Request) {
	var open, closed, today int64
	r.db.Model(&models.Load{}).Where("status = ?", models.LoadStatusOpen).Count(&open)
	r.db.Model(&models.Load{}).Where("status = ?", models.LoadStatusClosed).Count(&closed)
	midnight := time.Now().Truncate(24 * time.Hour)
	r.db.Model(&models.Load{}).Where("started_at >= ?", midnight).Count(&today)

	respondData(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"openLoads":   open,
		"closedLoads": closed,
		"loadsToday":  today,
	})
}

func pathID(req *http.Request, name string) uint {
	v, _ := strconv.ParseUint(mux.Vars(req)[name], 10, 32)
	return uint(v)
}

// readPhotoForm parses a multipart form and returns the "foto" file bytes
// and extension. A missing file is not an error; callers decide whether the
// photo is mandatory.
func readPhotoForm(req *http.Request) ([]byte, string, error) {
	if err := req.ParseMultipartForm(maxPhotoSize); err != nil {
		return nil, "", fmt.Errorf("invalid multipart form")
	}
	file, header, err := req.FormFile("foto")
	if err != nil {
		return nil, "", nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read photo")
	}
	return data, filepath.Ext(header.Filename), nil
}

func gpsFromForm(req *http.Request) loads.GPS {
	gps := loads.GPS{}
	if v, err := strconv.ParseFloat(req.FormValue("gpsLat"), 64); err == nil {
		gps.Lat = &v
	}
	if v, err := strconv.ParseFloat(req.FormValue("gpsLng"), 64); err == nil {
		gps.Lng = &v
	}
	if v, err := strconv.ParseFloat(req.FormValue("gpsAccuracy"), 64); err == nil {
		gps.Accuracy = &v
	}
	return gps
}
