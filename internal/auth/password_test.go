package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	hash, err := policy.Hash("Sup3r$ecret")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.True(t, policy.Verify("Sup3r$ecret", hash))
	assert.False(t, policy.Verify("Sup3r$ecret!", hash))
	assert.False(t, policy.Verify("", hash))
}

func TestPasswordHashIsSalted(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	first, err := policy.Hash("Sup3r$ecret")
	require.NoError(t, err)
	second, err := policy.Hash("Sup3r$ecret")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, policy.Verify("Sup3r$ecret", first))
	assert.True(t, policy.Verify("Sup3r$ecret", second))
}

func TestPasswordTruncationAt72Bytes(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	long := strings.Repeat("a", 72) + "tail"
	hash, err := policy.Hash(long)
	require.NoError(t, err)

	assert.True(t, policy.Verify(strings.Repeat("a", 72), hash))
	assert.True(t, policy.Verify(long+"more", hash))
	assert.False(t, policy.Verify(strings.Repeat("a", 71), hash))
}

func TestVerifyMalformedHash(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	assert.False(t, policy.Verify("Sup3r$ecret", "not-a-bcrypt-hash"))
	assert.False(t, policy.Verify("Sup3r$ecret", ""))
}

func TestPasswordStrength(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	tests := []struct {
		name       string
		password   string
		ok         bool
		violations int
	}{
		{"strong", "Abcdef1!", true, 0},
		{"short but complete", "Ab1!", false, 1},
		{"missing uppercase", "abcdef1!", false, 1},
		{"missing lowercase", "ABCDEF1!", false, 1},
		{"missing digit", "Abcdefg!", false, 1},
		{"missing symbol", "Abcdefg1", false, 1},
		{"everything wrong", "abc", false, 4},
		{"empty", "", false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, violations := policy.Strength(tt.password)
			assert.Equal(t, tt.ok, ok)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestPasswordStrengthViolationOrder(t *testing.T) {
	policy := NewPasswordPolicy(bcrypt.MinCost)

	ok, violations := policy.Strength("abc")
	require.False(t, ok)
	require.Len(t, violations, 4)
	assert.Contains(t, violations[0], "at least 8 characters")
	assert.Contains(t, violations[1], "uppercase")
}
