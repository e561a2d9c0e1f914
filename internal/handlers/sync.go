package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/maderasur/trozasgo/internal/middleware"
	syncengine "github.com/maderasur/trozasgo/internal/sync"
	ws "github.com/maderasur/trozasgo/internal/websocket"
)

func (r *Router) syncUpload(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	var batch syncengine.UploadBatch
	if !r.decodeAndValidate(w, req, &batch) {
		return
	}

	result, err := r.sync.ProcessBatch(userID, batch)
	if err != nil {
		respondAppError(w, err)
		return
	}

	r.hub.Broadcast(ws.EventSyncCompleted, map[string]interface{}{
		"batchId": result.BatchID,
		"summary": result.Summary,
	})
	respondData(w, http.StatusOK, result)
}

// syncPhoto attaches a photo to an already synced load. The load id and bank
// come as form fields next to the file.
func (r *Router) syncPhoto(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	photo, ext, err := readPhotoForm(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(photo) == 0 {
		respondError(w, http.StatusBadRequest, "Photo file is required")
		return
	}

	loadID, _ := strconv.ParseUint(req.FormValue("loadId"), 10, 32)
	bank, _ := strconv.Atoi(req.FormValue("banco"))
	if loadID == 0 || bank == 0 {
		respondError(w, http.StatusBadRequest, "loadId and banco are required")
		return
	}

	url, err := r.sync.AttachPhoto(userID, uint(loadID), bank, photo, ext, req.FormValue("deviceId"), gpsFromForm(req))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Photo synced", map[string]string{"photoUrl": url})
}

func (r *Router) syncUpdates(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	// Without an explicit cutoff the device gets the configured window
	since := time.Now().AddDate(0, 0, -r.cfg.Sync.UpdatesWindow)
	if raw := req.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}

	updates, err := r.sync.Updates(userID, since)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, updates)
}

func (r *Router) syncStatus(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	stats, err := r.sync.Status(userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, stats)
}

func (r *Router) syncHistory(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	entries, err := r.sync.History(userID, limit)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, entries)
}

func (r *Router) syncCleanup(w http.ResponseWriter, req *http.Request) {
	userID, _ := middleware.UserID(req)

	purged, err := r.sync.PurgeOlderThan(userID, r.cfg.Sync.RetentionDays)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"purged": purged})
}
