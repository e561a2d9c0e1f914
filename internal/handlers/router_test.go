package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maderasur/trozasgo/internal/config"
	"github.com/maderasur/trozasgo/internal/database"
	"github.com/maderasur/trozasgo/internal/models"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/maderasur/trozasgo/internal/storage"
	syncengine "github.com/maderasur/trozasgo/internal/sync"
	"github.com/maderasur/trozasgo/internal/utils"
	ws "github.com/maderasur/trozasgo/internal/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = gdb.AutoMigrate(
		&models.User{},
		&models.Transport{},
		&models.Driver{},
		&models.Load{},
		&models.LoadDetail{},
		&models.SyncLogEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.EnsureIndexes(gdb); err != nil {
		t.Fatalf("failed to create indexes: %v", err)
	}

	hash, err := utils.HashPassword("secreto123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	seed := []interface{}{
		&models.User{Username: "operador", Password: hash, Name: "Operador", Email: "operador@maderasur.cl", IsActive: true, HasAppAccess: true},
		&models.Transport{Name: "Transportes Bosque Sur", RUT: "765432101", Active: true},
		&models.Driver{RUT: "123456785", Name: "Pedro Soto", TransportID: 1, Active: true},
	}
	for _, row := range seed {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}

	store, err := storage.NewLocalStore(t.TempDir(), "/storage")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	cfg := &config.Config{
		Env:       "test",
		Port:      "0",
		JWTSecret: "test-secret",
		Storage:   config.StorageConfig{Dir: store.Root(), PublicURL: "/storage"},
		Sync:      config.SyncConfig{RetentionDays: 30, UpdatesWindow: 30},
	}

	db := &database.DB{DB: gdb}
	loadSvc := loads.NewService(gdb, store)
	engine := syncengine.NewEngine(gdb, loadSvc)
	hub := ws.NewHub()
	go hub.Run()

	return NewRouter(db, cfg, loadSvc, engine, store, hub)
}

func doJSON(t *testing.T, router *Router, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func loginToken(t *testing.T, router *Router) string {
	t.Helper()
	rec, body := doJSON(t, router, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "operador",
		"password": "secreto123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	data := body["data"].(map[string]interface{})
	tokens := data["tokens"].(map[string]interface{})
	return tokens["accessToken"].(string)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := testRouter(t)

	rec, body := doJSON(t, router, "POST", "/api/v1/auth/login", "", map[string]string{
		"username": "operador",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body["success"] != false {
		t.Errorf("envelope success = %v, want false", body["success"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := testRouter(t)

	rec, _ := doJSON(t, router, "GET", "/api/v1/trozas", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec, _ = doJSON(t, router, "GET", "/api/v1/trozas", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestAppConfig(t *testing.T) {
	router := testRouter(t)
	token := loginToken(t, router)

	rec, body := doJSON(t, router, "GET", "/api/v1/config", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := body["data"].(map[string]interface{})
	if len(data["diameters"].([]interface{})) != 20 {
		t.Errorf("diameters = %v", data["diameters"])
	}
	if len(data["lengths"].([]interface{})) != 5 {
		t.Errorf("lengths = %v", data["lengths"])
	}
	if data["maxBanks"].(float64) != 4 {
		t.Errorf("maxBanks = %v", data["maxBanks"])
	}
}

func TestLoadLifecycleOverHTTP(t *testing.T) {
	router := testRouter(t)
	token := loginToken(t, router)

	// Create
	rec, body := doJSON(t, router, "POST", "/api/v1/trozas", token, map[string]interface{}{
		"plate":       "ab-1234",
		"driverId":    1,
		"transportId": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	loadID := int(body["data"].(map[string]interface{})["id"].(float64))

	// Duplicate open plate
	rec, _ = doJSON(t, router, "POST", "/api/v1/trozas", token, map[string]interface{}{
		"plate":       "AB1234",
		"driverId":    1,
		"transportId": 1,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate plate: status = %d, want 409", rec.Code)
	}

	// Tally bank 1
	rec, body = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/trozas/%d/banco/1", loadID), token, map[string]interface{}{
		"logs": []map[string]interface{}{
			{"diameterCm": 24, "lengthM": 2.50, "quantity": 10},
			{"diameterCm": 30, "lengthM": 5.10, "quantity": 5},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("replace bank: %d %s", rec.Code, rec.Body.String())
	}
	if body["data"].(map[string]interface{})["loadTotal"].(float64) != 15 {
		t.Errorf("load total = %v, want 15", body["data"])
	}

	// Catalog violation comes back 422 with field errors
	rec, body = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/trozas/%d/banco/1", loadID), token, map[string]interface{}{
		"logs": []map[string]interface{}{{"diameterCm": 23, "lengthM": 2.50, "quantity": 1}},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad diameter: status = %d, want 422", rec.Code)
	}
	if body["errors"] == nil {
		t.Error("field errors missing from envelope")
	}

	// Close bank 1 with photo and GPS
	rec = doMultipart(t, router, fmt.Sprintf("/api/v1/trozas/%d/banco/1/cerrar", loadID), token, map[string]string{
		"gpsLat": "-36.82",
		"gpsLng": "-73.05",
		"notas":  "banco completo",
	}, "foto.jpg", []byte("jpegdata"))
	if rec.Code != http.StatusOK {
		t.Fatalf("close bank: %d %s", rec.Code, rec.Body.String())
	}

	// Closing the load
	rec, body = doJSON(t, router, "PUT", fmt.Sprintf("/api/v1/trozas/%d/cerrar", loadID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close load: %d %s", rec.Code, rec.Body.String())
	}
	if body["data"].(map[string]interface{})["status"] != models.LoadStatusClosed {
		t.Errorf("status = %v, want %s", body["data"], models.LoadStatusClosed)
	}

	// Read model
	rec, body = doJSON(t, router, "GET", fmt.Sprintf("/api/v1/trozas/%d", loadID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	view := body["data"].(map[string]interface{})
	if view["calcTotal"].(float64) != 15 {
		t.Errorf("calc total = %v, want 15", view["calcTotal"])
	}
	if view["driverName"] != "Pedro Soto" {
		t.Errorf("driver = %v", view["driverName"])
	}

	// Ticket PDF
	req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/trozas/%d/ticket", loadID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	pdfRec := httptest.NewRecorder()
	router.ServeHTTP(pdfRec, req)
	if pdfRec.Code != http.StatusOK {
		t.Fatalf("ticket: %d", pdfRec.Code)
	}
	if ct := pdfRec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("ticket content type = %q", ct)
	}
	if !bytes.HasPrefix(pdfRec.Body.Bytes(), []byte("%PDF")) {
		t.Error("ticket body is not a PDF")
	}
}

func TestSyncUploadOverHTTP(t *testing.T) {
	router := testRouter(t)
	token := loginToken(t, router)

	batch := map[string]interface{}{
		"deviceId": "tablet-01",
		"loads": []map[string]interface{}{
			{
				"localId":     "local-1",
				"plate":       "AB1234",
				"driverId":    1,
				"transportId": 1,
				"startedAt":   time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
				"status":      "ABIERTO",
				"details": []map[string]interface{}{
					{"bank": 1, "diameterCm": 24, "lengthM": 2.50, "quantity": 10},
				},
			},
		},
	}
	rec, body := doJSON(t, router, "POST", "/api/v1/sync/upload", token, batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	data := body["data"].(map[string]interface{})
	summary := data["summary"].(map[string]interface{})
	if summary["success"].(float64) != 1 {
		t.Errorf("summary = %v", summary)
	}

	// Re-upload dedupes
	rec, body = doJSON(t, router, "POST", "/api/v1/sync/upload", token, batch)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-upload: %d", rec.Code)
	}
	summary = body["data"].(map[string]interface{})["summary"].(map[string]interface{})
	if summary["duplicates"].(float64) != 1 {
		t.Errorf("re-upload summary = %v", summary)
	}

	// Status reflects the history
	rec, body = doJSON(t, router, "GET", "/api/v1/sync/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	stats := body["data"].(map[string]interface{})
	if stats["weekSuccess"].(float64) != 2 {
		t.Errorf("stats = %v", stats)
	}
}

func TestFleetEndpoints(t *testing.T) {
	router := testRouter(t)
	token := loginToken(t, router)

	rec, body := doJSON(t, router, "GET", "/api/v1/camiones", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("camiones: %d", rec.Code)
	}
	list := body["data"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("transports = %d, want 1", len(list))
	}
	first := list[0].(map[string]interface{})
	if first["rut"] != "76.543.210-1" {
		t.Errorf("rut = %v, want formatted", first["rut"])
	}

	rec, body = doJSON(t, router, "GET", "/api/v1/camiones/sync-all", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sync-all: %d", rec.Code)
	}
	if body["data"].(map[string]interface{})["count"].(float64) != 1 {
		t.Errorf("sync-all count = %v", body["data"])
	}
}

func TestFleetSearchAndDrivers(t *testing.T) {
	router := testRouter(t)
	token := loginToken(t, router)
	router.db.Create(&models.Driver{RUT: "876543214", Name: "Luis Rojas", TransportID: 1, Active: false})

	// Name and punctuated-RUT queries both land on the seeded transport
	for _, q := range []string{"bosque", "76.543.210-1"} {
		rec, body := doJSON(t, router, "GET", "/api/v1/camiones/transportes/search?q="+q, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("search %q: %d", q, rec.Code)
		}
		list := body["data"].([]interface{})
		if len(list) != 1 {
			t.Fatalf("search %q = %d results, want 1", q, len(list))
		}
	}

	rec, _ := doJSON(t, router, "GET", "/api/v1/camiones/transportes/search", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: %d, want 400", rec.Code)
	}

	rec, body := doJSON(t, router, "GET", "/api/v1/camiones/transportes/1/choferes", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transport drivers: %d", rec.Code)
	}
	list := body["data"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("transport drivers = %d, want 1 active", len(list))
	}
	driver := list[0].(map[string]interface{})
	if driver["name"] != "Pedro Soto" || driver["rut"] != "12.345.678-5" {
		t.Errorf("driver = %v", driver)
	}

	rec, _ = doJSON(t, router, "GET", "/api/v1/camiones/transportes/99/choferes", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown transport: %d, want 404", rec.Code)
	}

	rec, body = doJSON(t, router, "GET", "/api/v1/camiones/choferes", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("choferes: %d", rec.Code)
	}
	if list := body["data"].([]interface{}); len(list) != 1 {
		t.Errorf("active drivers = %d, want 1", len(list))
	}

	rec, body = doJSON(t, router, "GET", "/api/v1/camiones/choferes/search?q=soto", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("driver search: %d", rec.Code)
	}
	if list := body["data"].([]interface{}); len(list) != 1 {
		t.Errorf("driver search = %d, want 1", len(list))
	}
}

func TestHealthCheck(t *testing.T) {
	router := testRouter(t)

	rec, body := doJSON(t, router, "GET", "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
	if body["data"].(map[string]interface{})["status"] != "ok" {
		t.Errorf("health = %v", body["data"])
	}
}

func doMultipart(t *testing.T, router *Router, path, token string, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != nil {
		fw, err := mw.CreateFormFile("foto", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
