package database

import (
	"testing"

	"bookshare/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPersistentModels_CoversDomain(t *testing.T) {
	var user, genre, listing, loan bool
	for _, model := range PersistentModels() {
		switch model.(type) {
		case *models.User:
			user = true
		case *models.Genre:
			genre = true
		case *models.Listing:
			listing = true
		case *models.Loan:
			loan = true
		}
	}
	assert.True(t, user && genre && listing && loan, "PersistentModels should include every domain entity")
}
