// Package token compresses long navigation payloads into short opaque
// tokens that fit a transport with a hard payload-size limit.
//
// Tokens are process-lifetime only: the mapping table is never persisted,
// and a decode miss after a restart is a recoverable "stale navigation"
// condition for the caller, not an error to propagate.
package token

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/unidrive/unidrive/internal/metrics"
)

// MaxLen is the transport's hard limit on prefix:token, in bytes.
// (Chat callback payloads allow 64 bytes.)
const MaxLen = 64

// digestLen is the length of a shortened token.
const digestLen = 10

// ErrNotFound means the token was never issued in this process lifetime.
var ErrNotFound = errors.New("token not found")

// Prefix is the closed set of navigation actions a token can carry.
type Prefix int

const (
	Browse Prefix = iota
	Download
	Page
	Refresh
)

var prefixWire = map[Prefix]string{
	Browse:   "b",
	Download: "f",
	Page:     "p",
	Refresh:  "r",
}

// String returns the wire form of the prefix.
func (p Prefix) String() string {
	if s, ok := prefixWire[p]; ok {
		return s
	}
	return "?"
}

// ParsePrefix resolves a wire prefix string.
func ParsePrefix(s string) (Prefix, error) {
	for p, wire := range prefixWire {
		if wire == s {
			return p, nil
		}
	}
	return Browse, fmt.Errorf("unknown prefix %q", s)
}

// lowercase base32, no padding; keeps tokens compact and transport-safe.
var digestEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

type mapping struct {
	prefix  Prefix
	payload string
}

// Codec maps payloads to short tokens and back within one process
// lifetime. Safe for concurrent use.
type Codec struct {
	mu        sync.RWMutex
	byToken   map[string]mapping
	byPayload map[string]string
}

// NewCodec creates an empty codec.
func NewCodec() *Codec {
	return &Codec{
		byToken:   make(map[string]mapping),
		byPayload: make(map[string]string),
	}
}

// Encode returns "prefix:token" within MaxLen bytes. Short payloads pass
// through unchanged; long ones are replaced by a digest registered in the
// in-memory table. Encoding the same payload twice yields the same token.
func (c *Codec) Encode(prefix Prefix, payload string) string {
	wire := prefix.String() + ":"
	key := wire + payload

	c.mu.Lock()
	defer c.mu.Unlock()

	if tok, ok := c.byPayload[key]; ok {
		return tok
	}

	tok := key
	if len(key) > MaxLen {
		tok = wire + c.digestLocked(wire, payload)
	} else if existing, taken := c.byToken[tok]; taken && existing.payload != payload {
		// A short payload can spell the same bytes as an issued digest
		// token; it gets a digest of its own instead of the mapping.
		tok = wire + c.digestLocked(wire, payload)
	}

	c.byToken[tok] = mapping{prefix: prefix, payload: payload}
	c.byPayload[key] = tok
	metrics.SetTokenTableSize(len(c.byToken))
	return tok
}

// digestLocked derives a short digest for payload, salting and re-hashing
// until it collides with nothing live. Must hold c.mu.
func (c *Codec) digestLocked(wire, payload string) string {
	for salt := 0; ; salt++ {
		input := payload
		if salt > 0 {
			input = fmt.Sprintf("%s\x00%d", payload, salt)
			metrics.RecordTokenCollision()
		}
		sum := sha256.Sum256([]byte(input))
		digest := digestEncoding.EncodeToString(sum[:])[:digestLen]

		existing, taken := c.byToken[wire+digest]
		if !taken || existing.payload == payload {
			return digest
		}
	}
}

// Decode resolves a "prefix:token" string issued by Encode. Unknown
// tokens (restart, forgery, old keyboard) return ErrNotFound; callers
// should redirect to a safe default view.
func (c *Codec) Decode(token string) (Prefix, string, error) {
	wire, _, ok := strings.Cut(token, ":")
	if !ok {
		return Browse, "", fmt.Errorf("malformed token %q: %w", token, ErrNotFound)
	}
	prefix, err := ParsePrefix(wire)
	if err != nil {
		return Browse, "", fmt.Errorf("%v: %w", err, ErrNotFound)
	}

	c.mu.RLock()
	m, found := c.byToken[token]
	c.mu.RUnlock()

	if !found {
		metrics.RecordTokenMiss()
		return prefix, "", ErrNotFound
	}
	return m.prefix, m.payload, nil
}

// Len returns the number of live token mappings.
func (c *Codec) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byToken)
}
