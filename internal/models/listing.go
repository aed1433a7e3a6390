package models

import "time"

// Field limits shared by validation and the schema.
const (
	TitleMaxLength       = 150
	AuthorMaxLength      = 50
	DescriptionMaxLength = 400
	GenreNameMaxLength   = 20
	UsernameMaxLength    = 30
	PasswordMaxLength    = 255
)

// Listing is a physical book a user offers to lend.
type Listing struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Title             string    `gorm:"size:150;not null" json:"title"`
	Author            string    `gorm:"size:50" json:"author"`
	Description       string    `gorm:"size:400" json:"description"`
	GenreID           *uint     `gorm:"index" json:"genre_id"`
	Genre             *Genre    `gorm:"foreignKey:GenreID" json:"genre,omitempty"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	User              *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IsAvailable       bool      `gorm:"not null;index" json:"is_available"`
	MarkedForDeletion bool      `gorm:"not null" json:"marked_for_deletion"`
	DateListed        time.Time `gorm:"type:date;not null" json:"date_listed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Loans []Loan `gorm:"foreignKey:ListingID;constraint:OnDelete:CASCADE" json:"loans,omitempty"`
}

// OnLoan reports whether any loaded loan of the listing is still unreturned.
// Callers must preload Loans.
func (l *Listing) OnLoan() bool {
	for i := range l.Loans {
		if !l.Loans[i].IsReturned {
			return true
		}
	}
	return false
}
