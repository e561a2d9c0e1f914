package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an operator account. Authentication is a boundary concern;
// the core only needs the id for ownership scoping plus the two access flags.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"unique;not null" json:"username"`
	Password     string     `gorm:"not null" json:"-"`
	Name         string     `json:"name,omitempty"`
	Email        string     `gorm:"unique;not null" json:"email"`
	IsActive     bool       `gorm:"default:true" json:"isActive"`
	HasAppAccess bool       `gorm:"default:true" json:"hasAppAccess"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}
