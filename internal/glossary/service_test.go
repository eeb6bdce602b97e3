package glossary

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupath/coursesync/internal/cache"
	"github.com/edupath/coursesync/pkg/api"
)

func manyEntries(n int) []api.Entry {
	entries := make([]api.Entry, n)
	for i := range entries {
		entries[i] = api.Entry{
			ID:         int64(i + 1),
			GlossaryID: 5,
			Concept:    fmt.Sprintf("Concept %03d", i+1),
		}
	}
	return entries
}

func TestService_FetchAllEntries(t *testing.T) {
	h := newHarness(t)
	h.setRemote(manyEntries(63)...)

	entries, err := h.service.FetchAllEntriesByLetter(context.Background(), 5, cache.ReadOptions{})
	require.NoError(t, err)

	// 63 items at page size 25: three page requests, no gaps, no duplicates
	require.Len(t, entries, 63)
	assert.Equal(t, 3, h.callCount(wsGetEntriesByLetter))

	seen := make(map[int64]bool, len(entries))
	for i, entry := range entries {
		assert.False(t, seen[entry.ID], "duplicate entry %d", entry.ID)
		seen[entry.ID] = true
		assert.Equal(t, int64(i+1), entry.ID, "server order must be preserved")
	}
}

func TestService_FetchAllEntriesEmpty(t *testing.T) {
	h := newHarness(t)

	entries, err := h.service.FetchAllEntriesByLetter(context.Background(), 5, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, h.callCount(wsGetEntriesByLetter))
}

func TestService_ReadsShareCacheSlot(t *testing.T) {
	h := newHarness(t)
	h.setRemote(manyEntries(3)...)

	ctx := context.Background()
	_, err := h.service.GetEntriesByLetter(ctx, 5, "A", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)

	// The identical query from another call site hits the same slot
	_, err = h.service.GetEntriesByLetter(ctx, 5, "A", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, h.callCount(wsGetEntriesByLetter))

	// A different page is a different slot
	_, err = h.service.GetEntriesByLetter(ctx, 5, "A", 25, 25, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, h.callCount(wsGetEntriesByLetter))
}

func TestService_AddEntryInvalidatesListViews(t *testing.T) {
	h := newHarness(t)
	h.setRemote(manyEntries(3)...)
	ctx := context.Background()

	// Warm every list view
	_, err := h.service.GetEntriesByLetter(ctx, 5, "ALL", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	_, err = h.service.GetEntriesByDate(ctx, 5, "CREATION", "DESC", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	letterCalls := h.callCount(wsGetEntriesByLetter)
	dateCalls := h.callCount(wsGetEntriesByDate)

	_, err = h.service.AddEntry(ctx, api.AddEntryRequest{GlossaryID: 5, Concept: "Mitosis", Definition: "cell division"})
	require.NoError(t, err)

	// Every list view of glossary 5 was invalidated: both reads round-trip
	_, err = h.service.GetEntriesByLetter(ctx, 5, "ALL", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	_, err = h.service.GetEntriesByDate(ctx, 5, "CREATION", "DESC", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, letterCalls+1, h.callCount(wsGetEntriesByLetter))
	assert.Equal(t, dateCalls+1, h.callCount(wsGetEntriesByDate))
}

func TestService_AddEntryDoesNotTouchOtherGlossaries(t *testing.T) {
	h := newHarness(t)
	h.setRemote(manyEntries(3)...)
	ctx := context.Background()

	_, err := h.service.GetEntriesByLetter(ctx, 6, "ALL", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	calls := h.callCount(wsGetEntriesByLetter)

	_, err = h.service.AddEntry(ctx, api.AddEntryRequest{GlossaryID: 5, Concept: "Mitosis"})
	require.NoError(t, err)

	_, err = h.service.GetEntriesByLetter(ctx, 6, "ALL", 0, 25, cache.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, calls, h.callCount(wsGetEntriesByLetter), "glossary 6 cache must survive")
}

func TestService_GetEntryByIDCacheOnlyFallsBackToScan(t *testing.T) {
	h := newHarness(t)
	h.setRemote(manyEntries(3)...)
	ctx := context.Background()

	// Warm the list cache, but never the direct entry slot
	_, err := h.service.FetchAllEntriesByLetter(ctx, 5, cache.ReadOptions{})
	require.NoError(t, err)

	entry, err := h.service.GetEntryByID(ctx, 5, 2, cache.ReadOptions{Mode: cache.OnlyCache})
	require.NoError(t, err)
	assert.Equal(t, "Concept 002", entry.Concept)
	assert.Zero(t, h.callCount(wsGetEntryByID), "cache-only lookup must not round-trip")
}
