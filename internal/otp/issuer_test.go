package otp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestIssue_RangeAndFormat(t *testing.T) {
	i := NewIssuer()

	for range 500 {
		code, err := i.Issue()
		require.NoError(t, err)
		require.Len(t, code, 4)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, minCode)
		assert.LessOrEqual(t, n, maxCode)
	}
}

func TestIssue_LowestValue(t *testing.T) {
	i := NewIssuer(WithRandom(bytes.NewReader(make([]byte, 64))))

	code, err := i.Issue()
	require.NoError(t, err)
	assert.Equal(t, "1000", code)
}

func TestIssue_RandomFailure(t *testing.T) {
	i := NewIssuer(WithRandom(failingReader{}))

	_, err := i.Issue()
	assert.Error(t, err)
}

func TestHash_PlainSHA256WithoutPepper(t *testing.T) {
	sum := sha256.Sum256([]byte("1234"))
	assert.Equal(t, hex.EncodeToString(sum[:]), NewIssuer().Hash("1234"))
}

func TestHash_PepperChangesDigest(t *testing.T) {
	plain := NewIssuer()
	peppered := NewIssuer(WithPepper("server-secret"))
	other := NewIssuer(WithPepper("another-secret"))

	assert.NotEqual(t, plain.Hash("1234"), peppered.Hash("1234"))
	assert.NotEqual(t, peppered.Hash("1234"), other.Hash("1234"))
	assert.Equal(t, peppered.Hash("1234"), peppered.Hash("1234"))
	assert.NotContains(t, peppered.Hash("1234"), "1234")
}

func TestMatches(t *testing.T) {
	i := NewIssuer(WithPepper("pepper"))
	digest := i.Hash("4821")

	assert.True(t, i.Matches("4821", digest))
	assert.False(t, i.Matches("4822", digest))
	assert.False(t, i.Matches("", digest))
	assert.False(t, i.Matches("4821", ""))
	assert.False(t, NewIssuer().Matches("4821", digest))
}

func TestResetExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(10*time.Minute), NewIssuer().ResetExpiry(now))
	assert.Equal(t, now.Add(time.Hour), NewIssuer(WithResetTTL(time.Hour)).ResetExpiry(now))
	assert.Equal(t, DefaultResetTTL, NewIssuer(WithResetTTL(0)).ResetExpiry(now).Sub(now))
}
