// Package id provides centralized ID generation for the build pipeline.
//
// All identifiers are prefixed ULIDs:
//   - Lexicographic sortability: sessions and builds sort by creation time
//   - Prefixed types: sess_*, bld_* make logs readable
//   - Type safety: separate types prevent ID misuse across domains
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a revision session
type SessionID string

// BuildID identifies a single build run within a session
type BuildID string

const (
	SessionPrefix = "sess"
	BuildPrefix   = "bld"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewBuildID generates a new build ID
func NewBuildID() BuildID {
	return BuildID(Default().GenerateWithPrefix(BuildPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id BuildID) String() string   { return string(id) }
