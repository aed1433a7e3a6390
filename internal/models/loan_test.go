package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoanStatus(t *testing.T) {
	t.Parallel()

	today := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	returned := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loan Loan
		want LoanStatus
	}{
		{
			name: "due in future is active",
			loan: Loan{ReturnDate: Day(today).AddDate(0, 0, 3)},
			want: LoanStatusActive,
		},
		{
			name: "due today is active",
			loan: Loan{ReturnDate: Day(today)},
			want: LoanStatusActive,
		},
		{
			name: "past due and unreturned is overdue",
			loan: Loan{ReturnDate: Day(today).AddDate(0, 0, -1)},
			want: LoanStatusOverdue,
		},
		{
			name: "returned late is past",
			loan: Loan{ReturnDate: Day(today).AddDate(0, 0, -10), IsReturned: true, ActualReturnDate: &returned},
			want: LoanStatusPast,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loan.Status(today))
		})
	}
}

func TestListingOnLoan(t *testing.T) {
	t.Parallel()

	l := Listing{Loans: []Loan{{IsReturned: true}}}
	assert.False(t, l.OnLoan())

	l.Loans = append(l.Loans, Loan{IsReturned: false})
	assert.True(t, l.OnLoan())
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, ok := ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestErrorCodeAndStatus(t *testing.T) {
	t.Parallel()

	err := NewBusinessRuleError("nope")
	assert.Equal(t, CodeBusinessRule, ErrorCode(err))
	assert.Equal(t, 409, StatusForCode(ErrorCode(err)))
	assert.Equal(t, "", ErrorCode(assert.AnError))
	assert.Equal(t, 500, StatusForCode(""))
}
