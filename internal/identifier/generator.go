package identifier

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	iccidIndustryPrefix = "89"
	iccidCountryCode    = "01"
	iccidIssuerBlock    = "2345"
	iccidRandomDigits   = 11
	iccidLength         = 20

	EsimIDPrefix     = "maya_"
	SmdpAddress      = "smdp.mock-maya.com"
	DefaultAPN       = "globaldata"
	lpaScheme        = "LPA:1"
	activationLength = 16
)

var ErrRandomSource = errors.New("identifier_random_source")

// Generator synthesizes eSIM identifiers from a pluggable random source.
// Reads from the source are serialized, so a deterministic reader yields a
// deterministic sequence.
type Generator struct {
	mu  sync.Mutex
	src io.Reader
}

// New returns a Generator drawing from src, or crypto/rand when src is nil.
func New(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{src: src}
}

// ICCID returns 89 + 01 + 2345 + 11 random digits + Luhn check digit.
func (g *Generator) ICCID() (string, error) {
	var b strings.Builder
	b.Grow(iccidLength)
	b.WriteString(iccidIndustryPrefix)
	b.WriteString(iccidCountryCode)
	b.WriteString(iccidIssuerBlock)

	digits, err := g.digits(iccidRandomDigits)
	if err != nil {
		return "", err
	}
	b.WriteString(digits)
	b.WriteByte(byte('0' + luhnCheckDigit(b.String())))
	return b.String(), nil
}

// MatchingID returns a UUID in canonical textual form.
func (g *Generator) MatchingID() (string, error) {
	id, err := g.uuid()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// EsimID returns "maya_" followed by the first 8 characters of a UUID.
func (g *Generator) EsimID() (string, error) {
	id, err := g.uuid()
	if err != nil {
		return "", err
	}
	return EsimIDPrefix + id.String()[:8], nil
}

// ActivationCode returns 16 upper-case characters from a fresh UUID.
func (g *Generator) ActivationCode() (string, error) {
	id, err := g.uuid()
	if err != nil {
		return "", err
	}
	compact := strings.ReplaceAll(id.String(), "-", "")
	return strings.ToUpper(compact[:activationLength]), nil
}

// ManualCode has the same shape as ActivationCode but uses its own draw.
func (g *Generator) ManualCode() (string, error) {
	return g.ActivationCode()
}

// LPA renders the activation string encoded into the QR payload.
func LPA(activationCode string) string {
	return strings.Join([]string{lpaScheme, SmdpAddress, activationCode}, "$")
}

func (g *Generator) uuid() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return id, nil
}

// digits draws n decimal digits using rejection sampling to avoid modulo bias.
func (g *Generator) digits(n int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(g.src, buf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRandomSource, err)
		}
		for _, v := range buf {
			if v >= 250 {
				continue
			}
			out = append(out, '0'+v%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
