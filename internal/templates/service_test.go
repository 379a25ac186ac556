package templates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/shopsync/internal/config"
	"github.com/rpattn/shopsync/internal/domain"
	"github.com/rpattn/shopsync/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubStore struct {
	pages       []repository.ProductPage
	collection  []repository.ProductPage
	byID        []domain.Product
	listCalls   []repository.ProductListOptions
	handles     []string
	updates     map[string]string
	failUpdates map[string]error
}

func (s *stubStore) ListProductSummaries(_ context.Context, opts repository.ProductListOptions) (repository.ProductPage, error) {
	s.listCalls = append(s.listCalls, opts)
	if len(s.listCalls) > len(s.pages) {
		return repository.ProductPage{}, nil
	}
	return s.pages[len(s.listCalls)-1], nil
}

func (s *stubStore) CollectionProductSummaries(_ context.Context, handle string, opts repository.ProductListOptions) (repository.ProductPage, error) {
	s.handles = append(s.handles, handle)
	s.listCalls = append(s.listCalls, opts)
	if len(s.handles) > len(s.collection) {
		return repository.ProductPage{}, nil
	}
	return s.collection[len(s.handles)-1], nil
}

func (s *stubStore) ProductSummariesByID(_ context.Context, ids []string) ([]domain.Product, error) {
	return s.byID, nil
}

func (s *stubStore) UpdateProductTemplate(_ context.Context, productID, suffix string) error {
	if err := s.failUpdates[productID]; err != nil {
		return err
	}
	if s.updates == nil {
		s.updates = map[string]string{}
	}
	s.updates[productID] = suffix
	return nil
}

func products(suffixes ...string) []domain.Product {
	out := make([]domain.Product, len(suffixes))
	for i, suffix := range suffixes {
		out[i] = domain.Product{ID: "gid://shopify/Product/" + string(rune('1'+i)), Title: "P", TemplateSuffix: suffix, Vendor: "Acme"}
	}
	return out
}

func newTestService(store *stubStore, confirm Confirmer, sleeps *int) *Service {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 2
	return NewService(cfg, store, zap.NewNop(),
		WithConfirmer(confirm),
		WithSleep(func(context.Context, time.Duration) error {
			*sleeps++
			return nil
		}))
}

func alwaysYes(string) (bool, error) { return true, nil }

func TestAssignUpdatesAndSkipsCurrentTemplate(t *testing.T) {
	store := &stubStore{pages: []repository.ProductPage{{Products: products("", "bundle", "preorder", "")}}}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	report, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{Vendor: "Acme"}, Template: "bundle"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Success)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "already uses template", report.Results[1].Note)
	assert.Len(t, store.updates, 3)
	assert.Equal(t, "bundle", store.updates["gid://shopify/Product/1"])
	assert.Equal(t, 1, sleeps)
	assert.Equal(t, "vendor:Acme", store.listCalls[0].Query)
	assert.Equal(t, "bundle", report.Source)
}

func TestAssignDefaultClearsSuffix(t *testing.T) {
	store := &stubStore{byID: products("landing", "")}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	report, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{IDs: []string{"1", "2"}}, Template: "default", Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Success)
	assert.Equal(t, 1, report.Skipped)
	suffix, ok := store.updates["gid://shopify/Product/1"]
	assert.True(t, ok)
	assert.Equal(t, "", suffix)
}

func TestAssignIsolatesFailures(t *testing.T) {
	store := &stubStore{
		pages:       []repository.ProductPage{{Products: products("", "", "")}},
		failUpdates: map[string]error{"gid://shopify/Product/2": errors.New("Template suffix is invalid")},
	}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	report, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{Tag: "x"}, Template: "alternate", Force: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Success)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "Template suffix is invalid", report.Results[1].Error)
	assert.Contains(t, store.updates, "gid://shopify/Product/3")
}

func TestAssignDryRunListsOnly(t *testing.T) {
	store := &stubStore{pages: []repository.ProductPage{{Products: products("", "", "")}}}
	sleeps := 0
	confirmCalls := 0
	service := newTestService(store, func(string) (bool, error) {
		confirmCalls++
		return true, nil
	}, &sleeps)

	report, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{Tag: "x"}, Template: "preorder", DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Success)
	assert.Empty(t, store.updates)
	assert.Zero(t, sleeps)
	assert.Zero(t, confirmCalls)
}

func TestAssignDeclined(t *testing.T) {
	store := &stubStore{pages: []repository.ProductPage{{Products: products("")}}}
	sleeps := 0
	var prompt string
	service := newTestService(store, func(p string) (bool, error) {
		prompt = p
		return false, nil
	}, &sleeps)

	_, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{Tag: "x"}, Template: "landing"})
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Contains(t, prompt, `"landing"`)
	assert.Empty(t, store.updates)
}

func TestAssignRejectsUnknownTemplateAndEmptyFilter(t *testing.T) {
	store := &stubStore{}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	_, err := service.Assign(context.Background(), Request{Filter: domain.ProductFilter{Tag: "x"}, Template: "fancy"})
	assert.Error(t, err)

	_, err = service.Assign(context.Background(), Request{Template: "bundle"})
	assert.ErrorIs(t, err, ErrNoFilter)
	assert.Empty(t, store.listCalls)
}

func TestSelectCollectionFiltersLocallyAndPages(t *testing.T) {
	first := products("", "")
	first[1].Vendor = "Other"
	store := &stubStore{collection: []repository.ProductPage{
		{Products: first, HasNextPage: true, EndCursor: "c1"},
		{Products: products("")},
	}}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	selected, err := service.Select(context.Background(), domain.ProductFilter{CollectionHandle: "summer", Vendor: "acme"}, 10)
	require.NoError(t, err)

	assert.Len(t, selected, 2)
	assert.Equal(t, []string{"summer", "summer"}, store.handles)
	assert.Equal(t, "c1", store.listCalls[1].After)
}

func TestSelectHonorsLimit(t *testing.T) {
	store := &stubStore{pages: []repository.ProductPage{{Products: products("", "", ""), HasNextPage: true, EndCursor: "c1"}}}
	sleeps := 0
	service := newTestService(store, alwaysYes, &sleeps)

	selected, err := service.Select(context.Background(), domain.ProductFilter{Tag: "x"}, 2)
	require.NoError(t, err)

	assert.Len(t, selected, 2)
	assert.Equal(t, 2, store.listCalls[0].First)
}

func TestPromptConfirmer(t *testing.T) {
	var out strings.Builder
	confirm := PromptConfirmer(strings.NewReader("yes\nn\n"), &out)

	ok, err := confirm("Proceed?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = confirm("Again?")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = confirm("EOF?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Proceed? [y/N]: ")
}
