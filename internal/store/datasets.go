// Package store keeps client-side caches of backend datasets and campaigns.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kosarica/analytics-service/internal/cache"
	"github.com/kosarica/analytics-service/internal/types"
)

// ErrDatasetNotFound is returned when the backend does not list a dataset
var ErrDatasetNotFound = errors.New("dataset not found")

// DatasetAPI is the subset of the backend client the dataset store needs
type DatasetAPI interface {
	ListDatasets(ctx context.Context) ([]types.Dataset, error)
}

// DatasetStore caches datasets by id
type DatasetStore struct {
	api   DatasetAPI
	cache *cache.Cache[string, types.Dataset]
}

// NewDatasetStore creates a dataset store
func NewDatasetStore(api DatasetAPI, opts ...cache.Option) *DatasetStore {
	s := &DatasetStore{api: api}
	s.cache = cache.New("datasets", s.load, opts...)
	return s
}

// the backend has no single-dataset endpoint, so a load lists and picks
func (s *DatasetStore) load(ctx context.Context, id string) (types.Dataset, error) {
	all, err := s.api.ListDatasets(ctx)
	if err != nil {
		return types.Dataset{}, err
	}
	for _, d := range all {
		if d.ID == id {
			if cur, ok := s.cache.Peek(id); ok && cur.HasValue {
				d.ImportStatus = maxStatus(d.ImportStatus, cur.Value.ImportStatus)
			}
			return d, nil
		}
	}
	return types.Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
}

// Get returns the cached dataset, fetching it on first access or when stale
func (s *DatasetStore) Get(ctx context.Context, id string) (cache.Entry[types.Dataset], error) {
	return s.cache.Get(ctx, id)
}

// Peek returns the cached entry without fetching
func (s *DatasetStore) Peek(id string) (cache.Entry[types.Dataset], bool) {
	return s.cache.Peek(id)
}

// Refresh refetches one dataset
func (s *DatasetStore) Refresh(ctx context.Context, id string) (cache.Entry[types.Dataset], error) {
	return s.cache.Refresh(ctx, id)
}

// MarkStale makes the next Get refetch id
func (s *DatasetStore) MarkStale(id string) {
	s.cache.MarkStale(id)
}

// Insert adds a dataset the backend just created
func (s *DatasetStore) Insert(d types.Dataset) {
	s.cache.Set(d.ID, d)
}

// AdvanceImportStatus moves the cached import status forward. It never
// moves it backwards and does nothing for datasets not in the cache.
// It returns the cached dataset after the update.
func (s *DatasetStore) AdvanceImportStatus(id string, status types.ImportStatus) (types.Dataset, bool) {
	e, ok := s.cache.UpdateLoaded(id, func(cur types.Dataset) types.Dataset {
		cur.ImportStatus = maxStatus(cur.ImportStatus, status)
		return cur
	})
	if !ok {
		return types.Dataset{}, false
	}
	return e.Value, true
}

// List fetches the user's datasets and merges them into the cache, newest
// first. Cached import statuses that are ahead of the backend are kept.
func (s *DatasetStore) List(ctx context.Context) ([]types.Dataset, error) {
	all, err := s.api.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.Dataset, 0, len(all))
	for _, d := range all {
		e := s.cache.Update(d.ID, func(cur types.Dataset, ok bool) types.Dataset {
			if ok {
				d.ImportStatus = maxStatus(d.ImportStatus, cur.ImportStatus)
			}
			return d
		})
		out = append(out, e.Value)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func maxStatus(a, b types.ImportStatus) types.ImportStatus {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
