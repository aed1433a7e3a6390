package models

import "time"

// LoanPeriodDays is the length of every loan, counted from its start date.
const LoanPeriodDays = 21

// LoanStatus is derived from a loan's dates and flags; it is never stored.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "active"
	LoanStatusPast    LoanStatus = "past"
	LoanStatusOverdue LoanStatus = "overdue"
)

// ParseLoanStatus returns ok=false for anything but the three known statuses.
func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch LoanStatus(s) {
	case LoanStatusActive, LoanStatusPast, LoanStatusOverdue:
		return LoanStatus(s), true
	}
	return "", false
}

// Loan records one borrowing of a listing.
type Loan struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ListingID        uint       `gorm:"not null;index" json:"listing_id"`
	Listing          *Listing   `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	User             *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StartDate        time.Time  `gorm:"type:date;not null" json:"start_date"`
	ReturnDate       time.Time  `gorm:"type:date;not null;index" json:"return_date"`
	ActualReturnDate *time.Time `gorm:"type:date" json:"actual_return_date"`
	IsReturned       bool       `gorm:"not null" json:"is_returned"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Status derives the loan state relative to today.
func (l *Loan) Status(today time.Time) LoanStatus {
	if l.ActualReturnDate != nil {
		return LoanStatusPast
	}
	if !l.IsReturned && l.ReturnDate.Before(Day(today)) {
		return LoanStatusOverdue
	}
	return LoanStatusActive
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
