package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomaskub292929/to-korea-sub000/pkg/config"
	"github.com/tomaskub292929/to-korea-sub000/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
		MinLength:        8,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := security.HashPassword("very-secure-password", testPasswordConfig())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := security.VerifyPassword("very-secure-password", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = security.VerifyPassword("bogus-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := security.HashPassword("", testPasswordConfig())
	assert.Error(t, err)
}

func TestVerifyPasswordBadHash(t *testing.T) {
	_, err := security.VerifyPassword("irrelevant", "not-a-hash")
	assert.ErrorIs(t, err, security.ErrInvalidHash)

	for _, encoded := range []string{
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$$aGFzaA",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
	} {
		_, err = security.VerifyPassword("irrelevant", encoded)
		assert.ErrorIs(t, err, security.ErrInvalidHash, encoded)
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testPasswordConfig()
	hash, err := security.HashPassword("very-secure-password", cfg)
	require.NoError(t, err)
	assert.False(t, security.NeedsRehash(hash, cfg))

	cfg.ArgonTime = 2
	assert.True(t, security.NeedsRehash(hash, cfg))
	assert.True(t, security.NeedsRehash("garbage", cfg))
}

func TestCheckStrength(t *testing.T) {
	cfg := testPasswordConfig()
	assert.ErrorIs(t, security.CheckStrength("short", cfg), security.ErrWeakPassword)
	assert.NoError(t, security.CheckStrength("longenough", cfg))

	// multi-byte runes count once each
	assert.ErrorIs(t, security.CheckStrength("비밀번호비밀", cfg), security.ErrWeakPassword)

	cfg.MinLength = 0
	assert.ErrorIs(t, security.CheckStrength("1234567", cfg), security.ErrWeakPassword)
	assert.ErrorIs(t, security.CheckStrength(strings.Repeat("a", 257), cfg), security.ErrPasswordTooLong)
}
