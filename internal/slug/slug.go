// Package slug allocates the short public identifiers used by testimonials, groups, forms and projects.
package slug

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Length is the fixed length of every persisted slug.
	Length = 6
	// Alphabet holds the 36 symbols a slug is drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// MaxAttempts bounds the collision-checked candidates tried before falling back.
	MaxAttempts = 10

	fallbackRandomLength = 4
	fallbackSuffixLength = Length - fallbackRandomLength
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]{6}$`)

// ExistsFunc reports whether a candidate is already taken in the caller's namespace.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Allocator generates collision-checked slugs. The zero value is not usable; call NewAllocator.
type Allocator struct {
	random      func(length int) string
	clock       func() time.Time
	maxAttempts int
}

// NewAllocator builds an Allocator backed by crypto/rand and the wall clock.
func NewAllocator() *Allocator {
	return &Allocator{
		random:      Random,
		clock:       time.Now,
		maxAttempts: MaxAttempts,
	}
}

// Allocate returns the first random candidate for which exists reports false. When every attempt
// collides, or the check itself keeps failing, it degrades to four random symbols followed by two
// base-36 symbols of the current time without re-checking. The store's unique index is the
// authoritative guard; callers retry on unique violations.
func (allocator *Allocator) Allocate(ctx context.Context, exists ExistsFunc) string {
	for attempt := 0; attempt < allocator.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		candidate := allocator.random(Length)
		if exists == nil {
			return candidate
		}
		taken, checkErr := exists(ctx, candidate)
		if checkErr != nil {
			continue
		}
		if !taken {
			return candidate
		}
	}
	return allocator.fallback()
}

func (allocator *Allocator) fallback() string {
	suffix := strconv.FormatInt(allocator.clock().UnixMilli()%(36*36), 36)
	for len(suffix) < fallbackSuffixLength {
		suffix = "0" + suffix
	}
	return allocator.random(fallbackRandomLength) + suffix
}

// Random draws length symbols uniformly from Alphabet.
func Random(length int) string {
	limit := big.NewInt(int64(len(Alphabet)))
	var builder strings.Builder
	builder.Grow(length)
	for builder.Len() < length {
		index, randErr := rand.Int(rand.Reader, limit)
		if randErr != nil {
			// crypto/rand does not fail on supported platforms; fall back to the clock so the
			// allocator never panics.
			index = big.NewInt(time.Now().UnixNano() % int64(len(Alphabet)))
		}
		builder.WriteByte(Alphabet[index.Int64()])
	}
	return builder.String()
}

// Valid reports whether value has the persisted slug format.
func Valid(value string) bool {
	return slugPattern.MatchString(value)
}
