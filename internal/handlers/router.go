package handlers

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/maderasur/trozasgo/internal/catalog"
	"github.com/maderasur/trozasgo/internal/config"
	"github.com/maderasur/trozasgo/internal/database"
	"github.com/maderasur/trozasgo/internal/middleware"
	"github.com/maderasur/trozasgo/internal/services/loads"
	"github.com/maderasur/trozasgo/internal/storage"
	syncengine "github.com/maderasur/trozasgo/internal/sync"
	ws "github.com/maderasur/trozasgo/internal/websocket"
)

// Router wraps the mux router with the services every handler needs.
type Router struct {
	*mux.Router
	db       *database.DB
	cfg      *config.Config
	loads    *loads.Service
	sync     *syncengine.Engine
	store    storage.BlobStore
	hub      *ws.Hub
	validate *validator.Validate
}

// NewRouter creates the HTTP router with all routes wired.
func NewRouter(db *database.DB, cfg *config.Config, loadSvc *loads.Service, engine *syncengine.Engine, store storage.BlobStore, hub *ws.Hub) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		db:       db,
		cfg:      cfg,
		loads:    loadSvc,
		sync:     engine,
		store:    store,
		hub:      hub,
		validate: validator.New(),
	}

	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", r.healthCheck).Methods("GET")

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/refresh", r.refreshToken).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Everything below requires a valid token
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Auth(cfg.JWTSecret))

	protected.HandleFunc("/auth/me", r.currentUser).Methods("GET")
	protected.HandleFunc("/auth/verify", r.verifyToken).Methods("GET")
	protected.HandleFunc("/config", r.appConfig).Methods("GET")

	camiones := protected.PathPrefix("/camiones").Subrouter()
	camiones.HandleFunc("", r.listFleet).Methods("GET")
	camiones.HandleFunc("/sync-all", r.fleetSyncAll).Methods("GET")
	camiones.HandleFunc("/health", r.fleetHealth).Methods("GET")
	camiones.HandleFunc("/transportes/search", r.searchTransports).Methods("GET")
	camiones.HandleFunc("/transportes/{id:[0-9]+}/choferes", r.transportDrivers).Methods("GET")
	camiones.HandleFunc("/choferes", r.listDrivers).Methods("GET")
	camiones.HandleFunc("/choferes/search", r.searchDrivers).Methods("GET")

	trozas := protected.PathPrefix("/trozas").Subrouter()
	trozas.HandleFunc("", r.listLoads).Methods("GET")
	trozas.HandleFunc("/health", r.loadsHealth).Methods("GET")
	trozas.HandleFunc("", r.createLoad).Methods("POST")
	trozas.HandleFunc("/{id:[0-9]+}", r.getLoad).Methods("GET")
	trozas.HandleFunc("/{id:[0-9]+}/recalcular", r.recalculateLoad).Methods("POST")
	trozas.HandleFunc("/{id:[0-9]+}/cerrar", r.closeLoad).Methods("PUT")
	trozas.HandleFunc("/{id:[0-9]+}/ticket", r.loadTicket).Methods("GET")
	trozas.HandleFunc("/{id:[0-9]+}/banco/{banco:[0-9]+}", r.replaceBank).Methods("PUT")
	trozas.HandleFunc("/{id:[0-9]+}/banco/{banco:[0-9]+}/cerrar", r.closeBank).Methods("POST")
	trozas.HandleFunc("/{id:[0-9]+}/banco/{banco:[0-9]+}/foto", r.uploadBankPhoto).Methods("POST")

	syncRoutes := protected.PathPrefix("/sync").Subrouter()
	syncRoutes.HandleFunc("/upload", r.syncUpload).Methods("POST")
	syncRoutes.HandleFunc("/foto", r.syncPhoto).Methods("POST")
	syncRoutes.HandleFunc("/updates", r.syncUpdates).Methods("GET")
	syncRoutes.HandleFunc("/status", r.syncStatus).Methods("GET")
	syncRoutes.HandleFunc("/history", r.syncHistory).Methods("GET")
	syncRoutes.HandleFunc("/cleanup", r.syncCleanup).Methods("DELETE")

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	// Bank photos are served straight from disk
	if local, ok := store.(*storage.LocalStore); ok {
		r.PathPrefix(cfg.Storage.PublicURL + "/").Handler(
			http.StripPrefix(cfg.Storage.PublicURL+"/", http.FileServer(http.Dir(local.Root()))))
	}

	return r
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if sqlDB, err := r.db.DB.DB(); err != nil || sqlDB.Ping() != nil {
		status = "degraded"
		dbStatus = "down"
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"time":     time.Now().UTC(),
	})
}

// appConfig returns the field-capture catalog devices build their pickers
// from.
func (r *Router) appConfig(w http.ResponseWriter, req *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"diameters":             catalog.Diameters(),
		"lengths":               catalog.Lengths(),
		"maxBanks":              catalog.MaxBanks,
		"maxLogsPerCombination": catalog.MaxLogsPerCombination,
		"storageUrl":            r.cfg.Storage.PublicURL,
	})
}
