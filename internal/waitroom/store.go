// Package waitroom implements the ordered waiting room and the eligible set
// of the flash-sale admission queue.
//
// A waiting room entry is a token key scored by its admission timestamp.
// Rank is determined by ascending score; entries with equal scores keep
// their insertion order.  Promotion moves the lowest-ranked keys into the
// eligible set in one atomic step, so a key is never observed in both
// structures and a crash can not lose a key between them.
package waitroom

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned by Rank when the key is not waiting.  The key may
// have been promoted, never admitted, or expired; callers that care must
// check the eligible set first.
var ErrNotFound = errors.New("waitroom: key not found")

// ErrInvalidKey is returned by ParseKey for strings that are not token keys.
var ErrInvalidKey = errors.New("waitroom: invalid key")

// Store is the shared admission state.  Implementations must make every
// method atomic with respect to the others; no caller performs a
// read-then-write across two calls.
type Store interface {
	// Insert adds key with the given arrival score (unix milliseconds).
	// Inserting a key that is already waiting or eligible is a no-op so
	// that redelivered buffer messages are harmless.
	Insert(ctx context.Context, key string, score int64) error
	// Rank returns the 0-based position of key, or ErrNotFound.
	Rank(ctx context.Context, key string) (int64, error)
	// Size returns the number of waiting keys.
	Size(ctx context.Context) (int64, error)
	// TakeHead removes and returns up to n lowest-ranked keys in rank order.
	TakeHead(ctx context.Context, n int) ([]string, error)
	// Promote moves up to n lowest-ranked keys into the eligible set,
	// stamping them with now, and returns them in rank order.
	Promote(ctx context.Context, n int, now time.Time) ([]string, error)
	// IsEligible reports whether key is currently allowed to purchase.
	IsEligible(ctx context.Context, key string) (bool, error)
	// Retire removes key from the eligible set in one step and reports
	// whether it was eligible, with its promotion time.  Of two concurrent
	// calls for one key exactly one sees ok == true, which is how a token
	// is spent at most once.  Retiring an absent key is not an error.
	Retire(ctx context.Context, key string) (promotedAt time.Time, ok bool, err error)
	// Reinstate puts a retired key back into the eligible set with its
	// original promotion time.  It undoes a Retire whose purchase failed.
	Reinstate(ctx context.Context, key string, promotedAt time.Time) error
	// ExpireEligible drops eligible keys promoted before cutoff and returns
	// how many were removed.
	ExpireEligible(ctx context.Context, cutoff time.Time) (int64, error)
	// EligibleCount returns the number of eligible keys.
	EligibleCount(ctx context.Context) (int64, error)
}

// Key builds the waiting room member for a token.  The format
// session_id:resource_id:token is shared with the buffer consumer, which
// rebuilds the key from a buffer message.
func Key(sessionID string, resourceID uint64, token string) string {
	return sessionID + ":" + strconv.FormatUint(resourceID, 10) + ":" + token
}

// ParsedKey is the decomposed form of a token key.
type ParsedKey struct {
	SessionID  string
	ResourceID uint64
	Token      string
}

// ParseKey splits a token key.  Session ids may themselves contain colons,
// so the key is split from the right.
func ParseKey(key string) (ParsedKey, error) {
	i := strings.LastIndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return ParsedKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	token := key[i+1:]
	rest := key[:i]
	j := strings.LastIndexByte(rest, ':')
	if j <= 0 {
		return ParsedKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	rid, err := strconv.ParseUint(rest[j+1:], 10, 64)
	if err != nil {
		return ParsedKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return ParsedKey{SessionID: rest[:j], ResourceID: rid, Token: token}, nil
}
