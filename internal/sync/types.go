package sync

import "time"

// UploadBatch is the payload a device sends when it comes back online: every
// load captured offline since the last successful sync.
type UploadBatch struct {
	DeviceID string        `json:"deviceId" validate:"max=100"`
	Loads    []LoadPayload `json:"loads" validate:"required,min=1,dive"`
}

// LoadPayload is one offline-captured load. LocalID is the device-side
// identifier the client uses to correlate the server's verdict; the server
// never stores it.
type LoadPayload struct {
	LocalID     string          `json:"localId" validate:"required,max=100"`
	Plate       string          `json:"plate" validate:"required"`
	DriverID    uint            `json:"driverId" validate:"required"`
	TransportID uint            `json:"transportId" validate:"required"`
	StartedAt   time.Time       `json:"startedAt" validate:"required"`
	ClosedAt    *time.Time      `json:"closedAt"`
	Status      string          `json:"status" validate:"required,oneof=ABIERTO CERRADO"`
	Notes       string          `json:"notes" validate:"max=500"`
	Details     []DetailPayload `json:"details" validate:"dive"`
}

// DetailPayload is one tally line of an offline-captured load, including any
// bank closure evidence captured in the field.
type DetailPayload struct {
	Bank         int        `json:"bank"`
	DiameterCM   int        `json:"diameterCm"`
	LengthM      float64    `json:"lengthM"`
	Quantity     int        `json:"quantity"`
	BankClosed   bool       `json:"bankClosed"`
	BankClosedAt *time.Time `json:"bankClosedAt"`
	GPSLat       *float64   `json:"gpsLat"`
	GPSLng       *float64   `json:"gpsLng"`
	GPSAccuracy  *float64   `json:"gpsAccuracy"`
	BankNotes    string     `json:"bankNotes" validate:"max=300"`
}

// Item outcome codes.
const (
	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// ItemResult is the server's verdict on one uploaded load. ServerID is set
// for success and duplicate outcomes so the device can re-point its local
// record either way.
type ItemResult struct {
	LocalID  string `json:"localId"`
	Outcome  string `json:"outcome"`
	ServerID uint   `json:"serverId,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Summary aggregates a processed batch.
type Summary struct {
	Total      int `json:"total"`
	Success    int `json:"success"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// BatchResult is the full response to an upload batch.
type BatchResult struct {
	BatchID string       `json:"batchId"`
	Items   []ItemResult `json:"items"`
	Summary Summary      `json:"summary"`
}

// ServerUpdates carries everything a device needs to refresh after a sync:
// the active fleet, the caller's recently changed loads, the capture catalog
// and the server clock for drift checks.
type ServerUpdates struct {
	Since      time.Time      `json:"since"`
	ServerTime time.Time      `json:"serverTime"`
	Catalog    CatalogDTO     `json:"catalog"`
	Transports []TransportDTO `json:"transports"`
	Loads      []LoadChange   `json:"loads"`
}

// CatalogDTO is the capture catalog devices cache for offline tallying.
type CatalogDTO struct {
	Diameters             []int     `json:"diameters"`
	Lengths               []float64 `json:"lengths"`
	MaxBanks              int       `json:"maxBanks"`
	MaxLogsPerCombination int       `json:"maxLogsPerCombination"`
}

// TransportDTO is a transport company with its active drivers, shaped for
// device-side catalogs.
type TransportDTO struct {
	ID      uint        `json:"id"`
	Name    string      `json:"name"`
	RUT     string      `json:"rut"`
	Drivers []DriverDTO `json:"drivers"`
}

// DriverDTO is one active driver of a transport.
type DriverDTO struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	RUT   string `json:"rut"`
	Phone string `json:"phone,omitempty"`
}

// LoadChange is a server-side load header change the device should mirror.
type LoadChange struct {
	ID        uint       `json:"id"`
	Plate     string     `json:"plate"`
	Status    string     `json:"status"`
	TotalLogs int        `json:"totalLogs"`
	StartedAt time.Time  `json:"startedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Stats summarizes the caller's sync history: pending entries at rest,
// errors over the last day, successes over the last week.
type Stats struct {
	Pending      int64      `json:"pending"`
	RecentErrors int64      `json:"recentErrors"`
	WeekSuccess  int64      `json:"weekSuccess"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
}
