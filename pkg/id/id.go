package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GetUUID returns a random UUID without dashes.
func GetUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetULID returns a lexicographically sortable unique id.
// Run ids use ULIDs so listing by id follows creation order.
func GetULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRunID returns a prefixed run identifier.
func NewRunID() string {
	return "run-" + strings.ToLower(GetULID())
}

// NewReservationToken returns an opaque budget reservation token.
func NewReservationToken() string {
	return "rsv-" + GetUUID()
}
