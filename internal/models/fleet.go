package models

import "time"

// Transport is a hauling company. Active mirrors the "vigencia" flag of the
// upstream fleet master data; inactive companies stay in the table for
// historical loads but are not selectable for new ones.
type Transport struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Name              string `gorm:"not null;index" json:"name"`
	RUT               string `gorm:"column:rut;not null" json:"rut"`
	ContactName       string `json:"contactName,omitempty"`
	ContactPhone      string `json:"contactPhone,omitempty"`
	ContactEmail      string `json:"contactEmail,omitempty"`
	WarehouseTransfer bool   `gorm:"default:false" json:"warehouseTransfer"`
	Active            bool   `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"createdAt"`

	Drivers []Driver `gorm:"foreignKey:TransportID" json:"drivers,omitempty"`
}

// TableName specifies the table name
func (Transport) TableName() string {
	return "transports"
}

// Driver belongs to exactly one transport company. A load may only pair a
// driver with the transport the driver works for.
type Driver struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	RUT         string `gorm:"column:rut;not null;index" json:"rut"`
	Name        string `gorm:"not null;index" json:"name"`
	Phone       string `json:"phone,omitempty"`
	TransportID uint   `gorm:"not null;index" json:"transportId"`
	Active      bool   `gorm:"default:true;index" json:"active"`

	CreatedAt time.Time `json:"createdAt"`

	Transport *Transport `gorm:"foreignKey:TransportID" json:"transport,omitempty"`
}

// TableName specifies the table name
func (Driver) TableName() string {
	return "drivers"
}
