package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"medialib/internal/database"
	"medialib/models"
)

type rssParamsProvider struct {
	*MockProvider
}

func (rssParamsProvider) CacheSearchParams() SearchStrings {
	return SearchStrings{ModeRSS: {"720p"}}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, 0)
}

func dailyProvider(ctrl *gomock.Controller, name string) *MockProvider {
	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return(name).AnyTimes()
	p.EXPECT().Capabilities().Return(Capabilities{CanDaily: true, Public: true, Kind: KindTorrent}).AnyTimes()
	return p
}

func TestCacheSearchParams(t *testing.T) {
	ctrl := gomock.NewController(t)

	plain := NewCache(dailyProvider(ctrl, "Nyaa"), nil)
	assert.Equal(t, SearchStrings{ModeRSS: {""}}, plain.SearchParams())

	custom := NewCache(rssParamsProvider{dailyProvider(ctrl, "Custom")}, nil)
	assert.Equal(t, SearchStrings{ModeRSS: {"720p"}}, custom.SearchParams())
}

func TestCacheUpdateUpsertsByLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	store := newTestStore(t)

	p := dailyProvider(ctrl, "Nyaa")
	first := []models.SearchResult{
		{Title: "Show A 01", Link: "https://nyaa.si/download/1.torrent", Seeders: 1, Size: 10},
		{Title: "Show B 01", Link: "https://nyaa.si/download/2.torrent", Seeders: 2, Size: 0},
	}
	second := []models.SearchResult{
		{Title: "Show A 01", Link: "https://nyaa.si/download/1.torrent", Seeders: 50, Size: 10},
	}
	gomock.InOrder(
		p.EXPECT().Search(gomock.Any(), SearchStrings{ModeRSS: {""}}).Return(first, nil),
		p.EXPECT().Search(gomock.Any(), SearchStrings{ModeRSS: {""}}).Return(second, nil),
	)

	cache := NewCache(p, store)
	n, err := cache.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, cache.LastUpdated().IsZero())

	results, err := cache.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	_, err = cache.Update(ctx)
	require.NoError(t, err)

	results, err = cache.Results(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2, "same link must update in place")

	byLink := map[string]models.SearchResult{}
	for _, r := range results {
		byLink[r.Link] = r
	}
	assert.Equal(t, 50, byLink["https://nyaa.si/download/1.torrent"].Seeders)
	assert.Equal(t, "Show.A.01", byLink["https://nyaa.si/download/1.torrent"].Title)
	assert.Equal(t, models.UnknownSize, byLink["https://nyaa.si/download/2.torrent"].Size)
}

func TestCacheUpdateCountsOnlyStoredRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	p := dailyProvider(ctrl, "Nyaa")
	p.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]models.SearchResult{
		{Title: "Show A 01", Link: "https://nyaa.si/download/1.torrent"},
		{Title: "", Link: "https://nyaa.si/download/2.torrent"},
		{Title: "Show C 01", Link: ""},
	}, nil)

	cache := NewCache(p, newTestStore(t))
	n, err := cache.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := cache.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, results, n)
}

func TestCacheUpdateRequiresDaily(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockProvider(ctrl)
	p.EXPECT().Name().Return("YTS").AnyTimes()
	p.EXPECT().Capabilities().Return(Capabilities{CanBacklog: true}).AnyTimes()

	_, err := NewCache(p, newTestStore(t)).Update(context.Background())
	assert.Error(t, err)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, written, err := store.Save(ctx, "Nyaa", []models.SearchResult{{Title: "x", Link: "https://a/b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	loaded, err := store.Load(ctx, "Nyaa")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	require.NoError(t, store.Clear(ctx, "Nyaa"))
	loaded, err = store.Load(ctx, "Nyaa")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestUpdateAllCollectsCountsAndErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := newTestStore(t)

	good := dailyProvider(ctrl, "Nyaa")
	good.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]models.SearchResult{
		{Title: "a", Link: "https://a/1"},
		{Title: "b", Link: "https://a/2"},
	}, nil)

	bad := dailyProvider(ctrl, "Broken")
	bad.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, errors.New("feed down"))

	counts, err := UpdateAll(context.Background(), []*Cache{NewCache(good, store), NewCache(bad, store)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed down")
	assert.Equal(t, map[string]int{"Nyaa": 2}, counts)
}
