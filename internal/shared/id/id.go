// Package id provides ID generation for documents, requests and guest
// instances.
//
// Documents and requests get prefixed ULIDs (doc_*, req_*) so listings sort
// by creation time and logs stay readable. Guest module instances inside the
// WebAssembly runtime get random UUID-based names because the runtime only
// needs them to be unique.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// DocumentID identifies a hosted document
type DocumentID string

// RequestID identifies an API request
type RequestID string

const (
	DocumentPrefix = "doc"
	RequestPrefix  = "req"
	GuestPrefix    = "guest"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
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

// NewGenerator creates a generator with cryptographically secure entropy
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewDocumentID generates a new document ID
func NewDocumentID() DocumentID {
	return DocumentID(Default().GenerateWithPrefix(DocumentPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewGuestName returns a unique module instance name
func NewGuestName() string {
	return GuestPrefix + "-" + uuid.NewString()
}

func (id DocumentID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// Timestamp extracts the creation time of a document ID
func (id DocumentID) Timestamp() (time.Time, error) {
	raw, ok := strings.CutPrefix(string(id), DocumentPrefix+"_")
	if !ok {
		return time.Time{}, fmt.Errorf("document id %q lacks %s_ prefix", id, DocumentPrefix)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
