package seed

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory builds demo entities from a seeded faker.
type Factory struct {
	store  repository.Store
	hasher service.PasswordHasher
	faker  *gofakeit.Faker
	// suffix keeps generated usernames unique within one process
	suffix int
}

// NewFactory creates a Factory. The same faker seed yields the same data.
func NewFactory(store repository.Store, hasher service.PasswordHasher, faker *gofakeit.Faker) *Factory {
	return &Factory{store: store, hasher: hasher, faker: faker}
}

// Intn returns a pseudo-random int in [0, n).
func (f *Factory) Intn(n int) int {
	return f.faker.IntRange(0, n-1)
}

// CreateUser stores an account with a hashed password, bypassing the
// sign-up code check so admins can be created directly.
func (f *Factory) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	hash, err := f.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: strings.ToLower(username),
		Password: hash,
		Role:     role,
		JoinDate: models.Day(f.faker.PastDate()),
	}
	if err := f.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUsers adds n regular members whose password equals their username.
func (f *Factory) CreateUsers(ctx context.Context, n int) ([]models.User, error) {
	out := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		name := f.Username()
		user, err := f.CreateUser(ctx, name, name, models.RoleRegular)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, nil
}

// Username returns a lowercase name that has not been handed out before.
func (f *Factory) Username() string {
	f.suffix++
	base := strings.ToLower(f.faker.FirstName())
	base = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, base)
	name := fmt.Sprintf("%s%d", base, f.suffix)
	return clip(name, models.UsernameMaxLength)
}

// BuildListing returns a create request for a random book. About one in five
// books has no genre.
func (f *Factory) BuildListing(ownerID uint, genres []models.Genre) service.CreateListingInput {
	in := service.CreateListingInput{
		OwnerID:     ownerID,
		Title:       clip(f.faker.BookTitle(), models.TitleMaxLength),
		Author:      clip(f.faker.BookAuthor(), models.AuthorMaxLength),
		Description: clip(f.faker.Paragraph(1, 3, 12, " "), models.DescriptionMaxLength),
	}
	if len(genres) > 0 && f.Intn(5) != 0 {
		id := genres[f.Intn(len(genres))].ID
		in.GenreID = &id
	}
	return in
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
