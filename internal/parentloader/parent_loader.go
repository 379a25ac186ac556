package parentloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/shopsync/internal/repository"

	"github.com/graph-gophers/dataloader"
	"github.com/samber/lo"
)

// ErrVariantNotFound is returned for variants the API does not know.
var ErrVariantNotFound = errors.New("variant not found")

// maxBatch matches the Admin API limit on nodes(ids:).
const maxBatch = 250

// ParentLoader resolves variant IDs to their owning product IDs, batching
// lookups and caching answers for the lifetime of one run.
type ParentLoader struct {
	Loader *dataloader.Loader
}

// NewParentLoader wraps lookup in a batched dataloader.
func NewParentLoader(lookup repository.VariantParentLookup) *ParentLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		parents, err := lookup.VariantParents(ctx, lo.Uniq(ids))
		if err != nil {
			// One malformed ID rejects the whole nodes query, so retry key by
			// key and let only the offending variants fail.
			return resolveEach(ctx, lookup, ids, err)
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			results[i] = parentResult(parents, id)
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait(5*time.Millisecond),
		dataloader.WithBatchCapacity(maxBatch),
	)
	return &ParentLoader{Loader: loader}
}

// Prime resolves all ids up front so the per-row lookups that follow are
// answered from cache. Failures are cached too and surface on ProductID.
func (l *ParentLoader) Prime(ctx context.Context, ids []string) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return
	}
	thunk := l.Loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	_, _ = thunk()
}

// ProductID returns the owning product of variantID.
func (l *ParentLoader) ProductID(ctx context.Context, variantID string) (string, error) {
	value, err := l.Loader.Load(ctx, dataloader.StringKey(variantID))()
	if err != nil {
		return "", err
	}
	parent, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected parent value %T for %s", value, variantID)
	}
	return parent, nil
}

func resolveEach(ctx context.Context, lookup repository.VariantParentLookup, ids []string, batchErr error) []*dataloader.Result {
	results := make([]*dataloader.Result, len(ids))
	if len(ids) == 1 {
		results[0] = &dataloader.Result{Error: fmt.Errorf("resolve product: %w", batchErr)}
		return results
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			results[i] = &dataloader.Result{Error: err}
			continue
		}
		parents, err := lookup.VariantParents(ctx, []string{id})
		if err != nil {
			results[i] = &dataloader.Result{Error: fmt.Errorf("resolve product: %w", err)}
			continue
		}
		results[i] = parentResult(parents, id)
	}
	return results
}

func parentResult(parents map[string]string, id string) *dataloader.Result {
	if parent, ok := parents[id]; ok && parent != "" {
		return &dataloader.Result{Data: parent}
	}
	return &dataloader.Result{Error: fmt.Errorf("%w: %s", ErrVariantNotFound, id)}
}
