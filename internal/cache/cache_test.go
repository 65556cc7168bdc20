package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shopstr-eng/shopstr-cache/internal/adapter"
	"github.com/shopstr-eng/shopstr-cache/internal/cache"
	"github.com/shopstr-eng/shopstr-cache/internal/domain"
	"github.com/shopstr-eng/shopstr-cache/internal/ingest"
	"github.com/shopstr-eng/shopstr-cache/internal/mocks"
	"github.com/shopstr-eng/shopstr-cache/internal/source"
	"github.com/shopstr-eng/shopstr-cache/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var rows = []domain.Entity{
	&domain.Product{EntityHeader: domain.EntityHeader{ID: "30402:a:widget"}, Price: 10, Currency: "USD"},
	&domain.Product{EntityHeader: domain.EntityHeader{ID: "30402:a:gadget"}, Price: 20, Currency: "USD"},
}

var latestFilter = store.EntityFilter{Class: domain.ClassProduct, LatestOnly: true}

type deps struct {
	store       *mocks.MockStore
	coordinator *mocks.MockCoordinator
	sources     []source.Source
}

func setup(t *testing.T, cfg cache.Config) (cache.Cache, *deps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	d := &deps{
		store:       mocks.NewMockStore(ctrl),
		coordinator: mocks.NewMockCoordinator(ctrl),
		sources:     []source.Source{&source.Static{SourceName: "wss://a"}},
	}
	return cache.NewCache(cfg, d.store, d.coordinator, d.sources, adapter.NewClock()), d
}

func ago(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}

func TestFetchAll(t *testing.T) {
	c, d := setup(t, cache.Config{})

	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(rows, nil)
	got, err := c.FetchAll(context.Background(), domain.ClassProduct)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(nil, errors.New("connection reset"))
	_, err = c.FetchAll(context.Background(), domain.ClassProduct)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = c.FetchAll(context.Background(), domain.EntityClass("stall"))
	assert.ErrorIs(t, err, domain.ErrUnknownClass)
}

func TestFetchCached_FreshServesDirectly(t *testing.T) {
	c, d := setup(t, cache.Config{})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(ago(30*time.Second), nil)
	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(rows, nil)

	got, err := c.FetchCached(context.Background(), domain.ClassProduct, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestFetchCached_CoalescesConcurrentRefreshes(t *testing.T) {
	c, d := setup(t, cache.Config{RefreshWait: 5 * time.Second, PassTimeout: 5 * time.Second})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(ago(120*time.Second), nil).AnyTimes()
	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(rows, nil).Times(10)

	var passes atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassProduct, d.sources, gomock.Any()).
		DoAndReturn(func(ctx context.Context, class domain.EntityClass, sources []source.Source, policy ingest.RetryPolicy) (*domain.IngestionReport, error) {
			passes.Add(1)
			close(started)
			<-release
			return &domain.IngestionReport{Class: class, Accepted: 3}, nil
		})

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.FetchCached(context.Background(), domain.ClassProduct, time.Minute)
			if err == nil && len(got) != len(rows) {
				err = errors.New("unexpected row count")
			}
			errs <- err
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), passes.Load())
}

func TestFetchCached_ServesStoredRowsWhenRefreshIsSlow(t *testing.T) {
	c, d := setup(t, cache.Config{RefreshWait: 20 * time.Millisecond, PassTimeout: 5 * time.Second})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(ago(time.Hour), nil).AnyTimes()
	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(rows, nil)

	release := make(chan struct{})
	finished := make(chan struct{})
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassProduct, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, class domain.EntityClass, sources []source.Source, policy ingest.RetryPolicy) (*domain.IngestionReport, error) {
			defer close(finished)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &domain.IngestionReport{Class: class}, nil
		})

	start := time.Now()
	got, err := c.FetchCached(context.Background(), domain.ClassProduct, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	<-finished
}

func TestFetchCached_RefreshFailureServesStoredRows(t *testing.T) {
	c, d := setup(t, cache.Config{})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(nil, nil).AnyTimes()
	d.store.EXPECT().ListEntities(gomock.Any(), latestFilter).Return(nil, nil)
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassProduct, gomock.Any(), gomock.Any()).
		Return(nil, domain.NewStoreError("insert entity", errors.New("disk full")))

	got, err := c.FetchCached(context.Background(), domain.ClassProduct, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchCached_RecentRefreshCountsAsFresh(t *testing.T) {
	c, d := setup(t, cache.Config{DefaultFreshness: time.Minute})

	// the relays have nothing newer than a day, the refresh itself keeps the class fresh
	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassReview).Return(ago(24*time.Hour), nil).Times(2)
	d.store.EXPECT().ListEntities(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassReview, gomock.Any(), gomock.Any()).
		Return(&domain.IngestionReport{Class: domain.ClassReview}, nil).
		Times(1)

	_, err := c.FetchCached(context.Background(), domain.ClassReview, 0)
	require.NoError(t, err)
	_, err = c.FetchCached(context.Background(), domain.ClassReview, 0)
	require.NoError(t, err)
}

func TestFetchCached_PassWithNoReachableSourceStaysStale(t *testing.T) {
	c, d := setup(t, cache.Config{DefaultFreshness: time.Minute})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassReview).Return(ago(24*time.Hour), nil).AnyTimes()
	d.store.EXPECT().ListEntities(gomock.Any(), gomock.Any()).Return(rows, nil).Times(2)
	// every call refreshes again since no relay answered the previous pass
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassReview, gomock.Any(), gomock.Any()).
		Return(&domain.IngestionReport{
			Class:              domain.ClassReview,
			UnreachableSources: []string{"wss://a"},
			SourceErrors:       map[string]string{"wss://a": "connection refused"},
		}, nil).
		Times(2)

	got, err := c.FetchCached(context.Background(), domain.ClassReview, 0)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	got, err = c.FetchCached(context.Background(), domain.ClassReview, 0)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestFetchCached_CallerContext(t *testing.T) {
	c, d := setup(t, cache.Config{RefreshWait: 5 * time.Second})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(nil, nil).AnyTimes()

	release := make(chan struct{})
	finished := make(chan struct{})
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassProduct, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, class domain.EntityClass, sources []source.Source, policy ingest.RetryPolicy) (*domain.IngestionReport, error) {
			defer close(finished)
			<-release
			// the pass outlives the caller that started it
			assert.NoError(t, ctx.Err())
			return &domain.IngestionReport{Class: class}, nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.FetchCached(ctx, domain.ClassProduct, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-finished
}

func TestFetchCached_StoreUnavailable(t *testing.T) {
	c, d := setup(t, cache.Config{})

	d.store.EXPECT().GetNewestTime(gomock.Any(), domain.ClassProduct).Return(nil, errors.New("connection refused"))
	_, err := c.FetchCached(context.Background(), domain.ClassProduct, time.Minute)
	assert.ErrorIs(t, err, domain.ErrStore)
}

func TestRefresh(t *testing.T) {
	c, d := setup(t, cache.Config{})

	report := &domain.IngestionReport{Class: domain.ClassListing, Accepted: 2}
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassListing, d.sources, gomock.Any()).
		Return(report, nil)

	got, err := c.Refresh(context.Background(), domain.ClassListing)
	require.NoError(t, err)
	assert.Same(t, report, got)

	_, err = c.Refresh(context.Background(), domain.EntityClass("stall"))
	assert.ErrorIs(t, err, domain.ErrUnknownClass)

	// the report of a pass that reached nobody still goes back to the caller
	unreachable := &domain.IngestionReport{Class: domain.ClassListing, UnreachableSources: []string{"wss://a"}}
	d.coordinator.EXPECT().
		IngestWithRetry(gomock.Any(), domain.ClassListing, d.sources, gomock.Any()).
		Return(unreachable, nil)

	got, err = c.Refresh(context.Background(), domain.ClassListing)
	require.NoError(t, err)
	assert.Same(t, unreachable, got)
}

func TestFetchFilteredAndLatest(t *testing.T) {
	c, d := setup(t, cache.Config{})

	filter := store.EntityFilter{Class: domain.ClassUser, MerchantID: "abc"}
	d.store.EXPECT().ListEntities(gomock.Any(), filter).Return(nil, domain.ErrUnsupportedFilter)
	_, err := c.FetchFiltered(context.Background(), filter)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFilter)
	assert.NotErrorIs(t, err, domain.ErrStore)

	d.store.EXPECT().GetLatestEntity(gomock.Any(), domain.ClassProduct, "30402:a:widget").Return(rows[0], nil)
	got, err := c.FetchLatest(context.Background(), domain.ClassProduct, "30402:a:widget")
	require.NoError(t, err)
	assert.Equal(t, rows[0], got)

	d.store.EXPECT().GetLatestEntity(gomock.Any(), domain.ClassProduct, "missing").Return(nil, nil)
	got, err = c.FetchLatest(context.Background(), domain.ClassProduct, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
