package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	t.Parallel()
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, h.Compare(hash, "correct horse"))
	assert.False(t, h.Compare(hash, "correct horsE"))

	long := strings.Repeat("a", 100)
	longHash, err := h.Hash(long)
	require.NoError(t, err)
	assert.True(t, h.Compare(longHash, long))
	assert.False(t, h.Compare(longHash, long[:80]), "bytes past 72 still count")
}
