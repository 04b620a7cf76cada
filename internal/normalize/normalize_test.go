package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/trendsync/internal/catalog"
	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/imagesel"
)

type fakeLookups struct {
	detail    catalog.Detail
	detailErr error
	images    catalog.ImageSet
	imagesErr error

	calls int
}

func (f *fakeLookups) Details(context.Context, domain.Kind, int) (catalog.Detail, error) {
	return f.detail, f.detailErr
}

func (f *fakeLookups) Images(context.Context, domain.Kind, int) (catalog.ImageSet, error) {
	f.calls++
	return f.images, f.imagesErr
}

func strp(s string) *string { return &s }

var opts = imagesel.Options{Primary: "zh", Fallback: "en", Size: "original"}

func TestNormalize_FullItem(t *testing.T) {
	lk := &fakeLookups{
		detail: catalog.Detail{Genres: []catalog.Genre{{Name: "动作"}, {Name: "冒险"}, {Name: "科幻"}, {Name: "惊悚"}}},
		images: catalog.ImageSet{
			Posters:   []catalog.ImageEntry{{FilePath: "/en.jpg", Lang: strp("en"), VoteAverage: 9}, {FilePath: "/zh.jpg", Lang: strp("zh"), VoteAverage: 1}},
			Backdrops: []catalog.ImageEntry{{FilePath: "/bd.jpg"}},
			Logos:     []catalog.ImageEntry{{FilePath: "/logo.png", Lang: strp("zh")}},
		},
	}
	var st Stats
	n := New(lk, opts, nil).WithStats(&st)

	item, ok := n.Normalize(context.Background(), catalog.RawItem{
		ID: 7, MediaType: "movie", Title: "电影", VoteAverage: 7.25, ReleaseDate: "2024-03-01", Overview: " 简介 ", PosterPath: "/raw.jpg",
	}, domain.KindAll)
	require.True(t, ok)

	assert.Equal(t, domain.KindMovie, item.Kind)
	assert.Equal(t, "动作•冒险•科幻", item.GenreLabel)
	assert.Equal(t, 7.3, item.Rating)
	assert.Equal(t, "2024-03-01", item.ReleaseDate.String())
	assert.Equal(t, "简介", item.Overview)
	assert.Equal(t, imagesel.BaseURL+"original/zh.jpg", item.PosterURL)
	assert.Equal(t, imagesel.BaseURL+"original/bd.jpg", item.BackdropURL)
	assert.Equal(t, imagesel.BaseURL+"original/logo.png", item.LogoURL)
	assert.Equal(t, int64(1), st.Kept.Load())
}

func TestNormalize_TVUsesNameAndFirstAirDate(t *testing.T) {
	n := New(&fakeLookups{}, opts, nil)
	item, ok := n.Normalize(context.Background(), catalog.RawItem{
		ID: 1, Name: "剧集", FirstAirDate: "2022-01-01", ReleaseDate: "bad-date",
	}, domain.KindTV)
	require.True(t, ok)
	assert.Equal(t, "剧集", item.Title)
	assert.Equal(t, domain.KindTV, item.Kind)
	assert.Equal(t, "2022-01-01", item.ReleaseDate.String())
}

func TestNormalize_UnparsableDateIsAbsent(t *testing.T) {
	n := New(&fakeLookups{}, opts, nil)
	item, ok := n.Normalize(context.Background(), catalog.RawItem{
		ID: 1, MediaType: "movie", Title: "x", ReleaseDate: "2024-13-45", Overview: "o",
	}, domain.KindAll)
	require.True(t, ok)
	assert.True(t, item.ReleaseDate.IsZero())
}

func TestNormalize_PersonDroppedWithoutLookup(t *testing.T) {
	lk := &fakeLookups{}
	var st Stats
	n := New(lk, opts, nil).WithStats(&st)

	_, ok := n.Normalize(context.Background(), catalog.RawItem{ID: 3, MediaType: "person", Name: "someone"}, domain.KindAll)
	assert.False(t, ok)
	_, ok = n.Normalize(context.Background(), catalog.RawItem{ID: 4, Title: "no type"}, domain.KindAll)
	assert.False(t, ok)
	_, ok = n.Normalize(context.Background(), catalog.RawItem{ID: 5, MediaType: "collection"}, domain.KindAll)
	assert.False(t, ok)

	assert.Equal(t, 0, lk.calls)
	assert.Equal(t, int64(3), st.Dropped.Load())
}

func TestNormalize_QualityFilter(t *testing.T) {
	n := New(&fakeLookups{}, opts, nil)

	_, ok := n.Normalize(context.Background(), catalog.RawItem{ID: 1, MediaType: "movie", Title: "空"}, domain.KindAll)
	assert.False(t, ok, "全部为空的条目应被丢弃")

	item, ok := n.Normalize(context.Background(), catalog.RawItem{ID: 2, MediaType: "movie", Overview: "只有简介"}, domain.KindAll)
	assert.True(t, ok, "只有简介也应保留")
	assert.Equal(t, "只有简介", item.Overview)

	item, ok = n.Normalize(context.Background(), catalog.RawItem{ID: 3, MediaType: "movie", PosterPath: "/p.jpg"}, domain.KindAll)
	assert.True(t, ok, "只有原始海报也应保留")
	assert.Equal(t, imagesel.BaseURL+"original/p.jpg", item.PosterURL)
}

func TestNormalize_LookupFailureDegrades(t *testing.T) {
	lk := &fakeLookups{
		detailErr: &catalog.Failure{Endpoint: "/movie/1", Err: errors.New("down")},
		imagesErr: &catalog.Failure{Endpoint: "/movie/1/images", Err: errors.New("down")},
	}
	var st Stats
	n := New(lk, opts, nil).WithStats(&st)

	item, ok := n.Normalize(context.Background(), catalog.RawItem{
		ID: 1, MediaType: "movie", Title: "t", VoteAverage: 6.04, PosterPath: "/raw.jpg",
	}, domain.KindAll)
	require.True(t, ok)
	assert.Equal(t, "", item.GenreLabel)
	assert.Equal(t, "", item.BackdropURL)
	assert.Equal(t, "", item.LogoURL)
	assert.Equal(t, imagesel.BaseURL+"original/raw.jpg", item.PosterURL)
	assert.Equal(t, 6.0, item.Rating)
	assert.Equal(t, int64(2), st.LookupFailures.Load())
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 0.0, roundRating(0))
	assert.Equal(t, 7.3, roundRating(7.25))
	assert.Equal(t, 7.1, roundRating(7.123))
	assert.Equal(t, 10.0, roundRating(9.96))
}
