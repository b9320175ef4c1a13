package slug

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRandomProducesValidSlugs(t *testing.T) {
	for iteration := 0; iteration < 500; iteration++ {
		candidate := Random(Length)
		require.Len(t, candidate, Length)
		require.True(t, Valid(candidate), candidate)
	}
}

func TestAllocateReturnsFirstFreeCandidate(t *testing.T) {
	candidates := []string{"aaaaaa", "bbbbbb", "cccccc"}
	allocator := &Allocator{
		random: func(int) string {
			next := candidates[0]
			candidates = candidates[1:]
			return next
		},
		clock:       time.Now,
		maxAttempts: MaxAttempts,
	}

	taken := map[string]bool{"aaaaaa": true, "bbbbbb": true}
	checked := 0
	result := allocator.Allocate(context.Background(), func(_ context.Context, candidate string) (bool, error) {
		checked++
		return taken[candidate], nil
	})

	require.Equal(t, "cccccc", result)
	require.Equal(t, 3, checked)
}

func TestAllocateFallsBackAfterExhaustingAttempts(t *testing.T) {
	fixedTime := time.UnixMilli(36*36*7 + 35)
	allocator := &Allocator{
		random:      func(length int) string { return "zzzzzz"[:length] },
		clock:       func() time.Time { return fixedTime },
		maxAttempts: MaxAttempts,
	}

	checked := 0
	result := allocator.Allocate(context.Background(), func(context.Context, string) (bool, error) {
		checked++
		return true, nil
	})

	require.Equal(t, MaxAttempts, checked)
	require.Equal(t, "zzzz0z", result)
	require.True(t, Valid(result))
}

func TestAllocateTreatsCheckErrorsAsCollisions(t *testing.T) {
	allocator := NewAllocator()
	result := allocator.Allocate(context.Background(), func(context.Context, string) (bool, error) {
		return false, errors.New("store unavailable")
	})
	require.True(t, Valid(result))
}

func TestAllocateNeverFailsOnRealAllocator(t *testing.T) {
	allocator := NewAllocator()
	for iteration := 0; iteration < 50; iteration++ {
		result := allocator.Allocate(context.Background(), func(context.Context, string) (bool, error) {
			return true, nil
		})
		require.True(t, Valid(result), result)
	}
}

func TestValidRejectsMalformedSlugs(t *testing.T) {
	for _, value := range []string{"", "abc", "abcdefg", "ABCDEF", "abc-ef", "abc de", "ábcdef"} {
		require.False(t, Valid(value), value)
	}
	require.True(t, Valid("a1b2c3"))
}
