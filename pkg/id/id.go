// Package id generates the time ordered identifiers used for requests,
// messages and ratings.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewFromTime returns a ULID string for t. Identifiers produced within the
// same millisecond are strictly increasing.
func NewFromTime(t time.Time) (string, error) {
	mutex.Lock()
	defer mutex.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// New returns a ULID string for the current time.
func New() string {
	s, err := NewFromTime(time.Now())
	if err != nil {
		// monotonic entropy only fails after 2^80 ids in one millisecond
		panic(err)
	}
	return s
}

// IsValid reports whether s is a canonical ULID.
func IsValid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time returns the creation time encoded in s.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}
