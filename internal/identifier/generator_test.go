package identifier

import (
	"bytes"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var activationPattern = regexp.MustCompile(`^[0-9A-F]{16}$`)

func seeded(seed int64) *Generator {
	return New(rand.New(rand.NewSource(seed)))
}

func TestICCIDShapeAndValidity(t *testing.T) {
	g := seeded(1)
	for i := 0; i < 10000; i++ {
		iccid, err := g.ICCID()
		require.NoError(t, err)
		if len(iccid) != 20 {
			t.Fatalf("expected 20 digits, got %q", iccid)
		}
		if !strings.HasPrefix(iccid, "89012345") {
			t.Fatalf("unexpected prefix in %q", iccid)
		}
		if !Validate(iccid) {
			t.Fatalf("generated ICCID failed validation: %s", iccid)
		}
	}
}

func TestValidateDetectsSingleDigitMutations(t *testing.T) {
	g := seeded(7)
	total, detected := 0, 0
	for n := 0; n < 200; n++ {
		iccid, err := g.ICCID()
		require.NoError(t, err)
		for pos := 0; pos < len(iccid); pos++ {
			for d := byte('0'); d <= '9'; d++ {
				if iccid[pos] == d {
					continue
				}
				mutated := []byte(iccid)
				mutated[pos] = d
				total++
				if !Validate(string(mutated)) {
					detected++
				}
			}
		}
	}
	ratio := float64(detected) / float64(total)
	assert.GreaterOrEqual(t, ratio, 0.9, "detected %d of %d mutations", detected, total)
}

func TestLuhnCheckDigitKnownValue(t *testing.T) {
	// 7992739871 is the textbook Luhn example with check digit 3.
	assert.Equal(t, 3, luhnCheckDigit("7992739871"))
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"short":     "8901234500000000000",
		"long":      "890123450000000000000",
		"non digit": "89012345000000000A00",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, Validate(in))
		})
	}
}

func TestGeneratorIsDeterministicForSameSource(t *testing.T) {
	a, b := seeded(42), seeded(42)

	for i := 0; i < 5; i++ {
		ia, err := a.ICCID()
		require.NoError(t, err)
		ib, err := b.ICCID()
		require.NoError(t, err)
		assert.Equal(t, ia, ib)

		ma, err := a.MatchingID()
		require.NoError(t, err)
		mb, err := b.MatchingID()
		require.NoError(t, err)
		assert.Equal(t, ma, mb)
	}
}

func TestCodeShapes(t *testing.T) {
	g := seeded(3)

	matching, err := g.MatchingID()
	require.NoError(t, err)
	_, err = uuid.Parse(matching)
	assert.NoError(t, err)

	esimID, err := g.EsimID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(esimID, EsimIDPrefix))
	assert.Len(t, esimID, len(EsimIDPrefix)+8)

	activation, err := g.ActivationCode()
	require.NoError(t, err)
	assert.Regexp(t, activationPattern, activation)

	manual, err := g.ManualCode()
	require.NoError(t, err)
	assert.Regexp(t, activationPattern, manual)
	assert.NotEqual(t, activation, manual)
}

func TestLPA(t *testing.T) {
	assert.Equal(t, "LPA:1$smdp.mock-maya.com$ABCDEF0123456789", LPA("ABCDEF0123456789"))
}

func TestExhaustedSourceSurfacesError(t *testing.T) {
	g := New(bytes.NewReader([]byte{1, 2, 3}))

	_, err := g.ICCID()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRandomSource))

	_, err = g.MatchingID()
	assert.True(t, errors.Is(err, ErrRandomSource))
}
