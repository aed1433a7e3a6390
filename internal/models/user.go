// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Role is the privilege level of a user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleRegular Role = "regular"
)

// ParseRole accepts only the two known role names.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleRegular:
		return RoleRegular, true
	}
	return "", false
}

// User represents a registered member of the book sharing community.
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Username          string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password          string    `gorm:"size:255;not null" json:"-"`
	Role              Role      `gorm:"size:20;not null;index" json:"role"`
	MarkedForDeletion bool      `gorm:"not null" json:"marked_for_deletion"`
	TotalLoans        int       `gorm:"not null" json:"total_loans"`
	TotalListings     int       `gorm:"not null" json:"total_listings"`
	JoinDate          time.Time `gorm:"type:date;not null" json:"join_date"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Listings []Listing `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Loans    []Loan    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
