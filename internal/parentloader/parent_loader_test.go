package parentloader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	mu      sync.Mutex
	batches [][]string
	parents map[string]string
	err     error
	// rejectID fails any request that contains it, as the Admin API does for
	// a malformed global ID.
	rejectID string
}

func (c *countingLookup) VariantParents(_ context.Context, ids []string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := append([]string(nil), ids...)
	sort.Strings(batch)
	c.batches = append(c.batches, batch)
	if c.err != nil {
		return nil, c.err
	}
	if c.rejectID != "" && slices.Contains(ids, c.rejectID) {
		return nil, fmt.Errorf("Invalid global id '%s'", c.rejectID)
	}
	out := map[string]string{}
	for _, id := range ids {
		if parent, ok := c.parents[id]; ok {
			out[id] = parent
		}
	}
	return out, nil
}

func TestPrimeBatchesAndCaches(t *testing.T) {
	lookup := &countingLookup{parents: map[string]string{
		"1": "gid://shopify/Product/10",
		"2": "gid://shopify/Product/10",
		"3": "gid://shopify/Product/20",
	}}
	loader := NewParentLoader(lookup)
	ctx := context.Background()

	loader.Prime(ctx, []string{"1", "2", "3", "2", ""})

	for id, want := range map[string]string{"1": "gid://shopify/Product/10", "3": "gid://shopify/Product/20"} {
		got, err := loader.ProductID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.Len(t, lookup.batches, 1)
	assert.Equal(t, []string{"1", "2", "3"}, lookup.batches[0])
}

func TestProductIDUnknownVariant(t *testing.T) {
	loader := NewParentLoader(&countingLookup{parents: map[string]string{}})

	_, err := loader.ProductID(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVariantNotFound))
}

func TestLookupFailureSurfacesPerVariant(t *testing.T) {
	loader := NewParentLoader(&countingLookup{err: errors.New("throttled")})
	ctx := context.Background()

	loader.Prime(ctx, []string{"1", "2"})

	_, err := loader.ProductID(ctx, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestRejectedBatchFallsBackToSingleLookups(t *testing.T) {
	lookup := &countingLookup{
		rejectID: "abc",
		parents: map[string]string{
			"1": "gid://shopify/Product/10",
			"2": "gid://shopify/Product/10",
			"4": "gid://shopify/Product/20",
			"5": "gid://shopify/Product/20",
		},
	}
	loader := NewParentLoader(lookup)
	ctx := context.Background()

	loader.Prime(ctx, []string{"1", "2", "abc", "4", "5"})

	for _, id := range []string{"1", "2", "4", "5"} {
		parent, err := loader.ProductID(ctx, id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, parent)
	}
	_, err := loader.ProductID(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid global id 'abc'")

	// one rejected batch, then one request per key
	assert.Len(t, lookup.batches, 6)
}
