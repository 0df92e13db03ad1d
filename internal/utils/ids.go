// Package utils holds small helpers shared across packages.
package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a random UUID used as the primary key of users and notes.
func NewID() string {
	return uuid.NewString()
}

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a lexically sortable ULID for correlating log lines.
// Ids generated in the same millisecond are still strictly increasing.
func NewRequestID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
