package models

import "time"

// Load status values. The Spanish terms are kept on the wire because the
// mobile client and the historical data both use them.
const (
	LoadStatusOpen   = "ABIERTO"
	LoadStatusClosed = "CERRADO"
)

// Load is the header of one truck visit: a plate, a driver/transport pair and
// up to four banks of tallied logs. TotalLogs is denormalized and owned by
// the recompute step; the live value is always derivable from the details.
type Load struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Plate       string     `gorm:"size:10;not null;index" json:"plate"`
	DriverID    uint       `gorm:"not null" json:"driverId"`
	TransportID uint       `gorm:"not null" json:"transportId"`
	StartedAt   time.Time  `gorm:"not null;index" json:"startedAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
	Status      string     `gorm:"size:10;not null;default:'ABIERTO';index" json:"status"`
	UserID      uint       `gorm:"not null;index" json:"userId"`
	Notes       string     `gorm:"size:500" json:"notes,omitempty"`
	TotalLogs   int        `gorm:"default:0" json:"totalLogs"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Driver    *Driver      `gorm:"foreignKey:DriverID" json:"driver,omitempty"`
	Transport *Transport   `gorm:"foreignKey:TransportID" json:"transport,omitempty"`
	User      *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Details   []LoadDetail `gorm:"foreignKey:LoadID" json:"details,omitempty"`
}

// TableName specifies the table name
func (Load) TableName() string {
	return "loads"
}

// IsOpen reports whether the load still accepts tally changes.
func (l *Load) IsOpen() bool {
	return l.Status == LoadStatusOpen
}

// LoadDetail is one (bank, diameter, length) tally line. All rows of a
// (load, bank) pair share the bank closure metadata: they are closed as a
// set and never touched individually afterwards.
type LoadDetail struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	LoadID       uint       `gorm:"not null;index:idx_load_bank" json:"loadId"`
	Bank         int        `gorm:"not null;index:idx_load_bank" json:"bank"`
	DiameterCM   int        `gorm:"not null" json:"diameterCm"`
	LengthM      float64    `gorm:"not null" json:"lengthM"`
	Quantity     int        `gorm:"not null" json:"quantity"`
	BankClosed   bool       `gorm:"not null;default:false" json:"bankClosed"`
	BankClosedAt *time.Time `json:"bankClosedAt,omitempty"`
	PhotoPath    *string    `gorm:"size:255" json:"photoPath,omitempty"`
	GPSLat       *float64   `gorm:"column:gps_lat" json:"gpsLat,omitempty"`
	GPSLng       *float64   `gorm:"column:gps_lng" json:"gpsLng,omitempty"`
	GPSAccuracy  *float64   `gorm:"column:gps_accuracy" json:"gpsAccuracy,omitempty"`
	BankNotes    string     `gorm:"size:300" json:"bankNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (LoadDetail) TableName() string {
	return "load_details"
}

// HasGPS reports whether the row carries a complete coordinate pair.
func (d *LoadDetail) HasGPS() bool {
	return d.GPSLat != nil && d.GPSLng != nil
}
