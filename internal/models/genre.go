package models

import "strings"

// Genre is an admin-curated category that listings may reference.
type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:20;not null" json:"name"`
	// NameKey is the trimmed lower-case Name; its unique index makes
	// "Horror" and "horror" collide in the database as well.
	NameKey  string `gorm:"size:20;uniqueIndex;not null" json:"-"`
	Image    string `gorm:"size:255" json:"image"`
	Inactive bool   `gorm:"not null" json:"inactive"`

	Listings []Listing `gorm:"foreignKey:GenreID;constraint:OnDelete:SET NULL" json:"-"`
}

// GenreNameKey folds a genre name to its uniqueness key.
func GenreNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
