package seed

import (
	_ "embed"
	"fmt"
	"strings"

	"bookshare/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// GenreFixture is a genre that should always exist.
type GenreFixture struct {
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

// UserFixture is a demo account with a known password.
type UserFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Fixtures is the static part of a seed run.
type Fixtures struct {
	Genres []GenreFixture `yaml:"genres"`
	Users  []UserFixture  `yaml:"users"`
}

// DefaultFixtures returns the fixtures bundled with the binary.
func DefaultFixtures() (*Fixtures, error) {
	return LoadFixtures(defaultFixtures)
}

// LoadFixtures parses and checks a YAML fixture document.
func LoadFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, g := range fx.Genres {
		if strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("genre %d: name is required", i)
		}
	}
	for i, u := range fx.Users {
		if strings.TrimSpace(u.Username) == "" || u.Password == "" {
			return nil, fmt.Errorf("user %d: username and password are required", i)
		}
		if u.Role == "" {
			fx.Users[i].Role = string(models.RoleRegular)
			continue
		}
		if _, ok := models.ParseRole(u.Role); !ok {
			return nil, fmt.Errorf("user %q: invalid role %q", u.Username, u.Role)
		}
	}
	return &fx, nil
}
