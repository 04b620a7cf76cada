// Package normalize 把目录原始记录与两次查询结果合成为 domain.MediaItem。
package normalize

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/John-Robertt/trendsync/internal/catalog"
	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/imagesel"
)

// GenreSeparator 连接类型标签。
const GenreSeparator = "•"

// MaxGenres 是类型标签最多保留的个数。
const MaxGenres = 3

// Lookups 是规范化需要的两次逐条查询。
type Lookups interface {
	Details(ctx context.Context, kind domain.Kind, id int) (catalog.Detail, error)
	Images(ctx context.Context, kind domain.Kind, id int) (catalog.ImageSet, error)
}

// Stats 统计一批条目的规范化结果。并发安全。
type Stats struct {
	Kept           atomic.Int64
	Dropped        atomic.Int64
	LookupFailures atomic.Int64
}

// Normalizer 无可变状态（Stats 指针除外），可被多个 goroutine 共享。
type Normalizer struct {
	lookups Lookups
	images  imagesel.Options
	log     *slog.Logger
	stats   *Stats
}

// New 创建 Normalizer。images 里的 Kind 字段会被每个条目的实际类型覆盖。
func New(lookups Lookups, images imagesel.Options, log *slog.Logger) Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return Normalizer{lookups: lookups, images: images, log: log.With("component", "normalize")}
}

// WithStats 返回一个把结果计入 st 的副本。
func (n Normalizer) WithStats(st *Stats) Normalizer {
	n.stats = st
	return n
}

// Normalize 规范化一条原始记录；ok=false 表示该条目应被丢弃。
//
// 规则：
// - 类型取 media_type，缺失时取请求类型；person/未知类型直接丢弃，不发查询
// - 查询失败只降级对应字段，不丢弃条目
// - 评分、日期、简介、海报全部为空的条目被丢弃
func (n Normalizer) Normalize(ctx context.Context, raw catalog.RawItem, requested domain.Kind) (domain.MediaItem, bool) {
	kind, ok := resolveKind(raw.MediaType, requested)
	if !ok {
		n.count(func(s *Stats) { s.Dropped.Add(1) })
		return domain.MediaItem{}, false
	}

	var (
		detail    catalog.Detail
		detailErr error
		images    catalog.ImageSet
		imagesErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() { detail, detailErr = n.lookups.Details(ctx, kind, raw.ID) })
	wg.Go(func() { images, imagesErr = n.lookups.Images(ctx, kind, raw.ID) })
	wg.Wait()

	if detailErr != nil {
		n.lookupFailed("details", kind, raw.ID, detailErr)
	}
	if imagesErr != nil {
		n.lookupFailed("images", kind, raw.ID, imagesErr)
	}

	item := domain.MediaItem{
		ID:          raw.ID,
		Title:       raw.DisplayTitle(),
		Kind:        kind,
		Rating:      roundRating(raw.VoteAverage),
		ReleaseDate: releaseDate(raw, kind),
		Overview:    strings.TrimSpace(raw.Overview),
	}
	if detailErr == nil {
		item.GenreLabel = strings.Join(detail.GenreNames(MaxGenres), GenreSeparator)
	}

	opts := n.images
	opts.Kind = kind
	if imagesErr == nil {
		item.PosterURL, _ = imagesel.SelectBest(images.Candidates(domain.RolePoster), domain.RolePoster, opts)
		item.BackdropURL, _ = imagesel.SelectBest(images.Candidates(domain.RoleBackdrop), domain.RoleBackdrop, opts)
		item.LogoURL, _ = imagesel.SelectBest(images.Candidates(domain.RoleLogo), domain.RoleLogo, opts)
	}
	if item.PosterURL == "" {
		item.PosterURL = imagesel.ImageURL(raw.PosterPath, opts.Size)
	}

	if item.IsNearEmpty() {
		n.log.Debug("drop near-empty item", "kind", kind, "id", raw.ID, "title", item.Title)
		n.count(func(s *Stats) { s.Dropped.Add(1) })
		return domain.MediaItem{}, false
	}
	n.count(func(s *Stats) { s.Kept.Add(1) })
	return item, true
}

func (n Normalizer) lookupFailed(what string, kind domain.Kind, id int, err error) {
	n.log.Warn("lookup failed, degrading item", "lookup", what, "kind", kind, "id", id, "err", err)
	n.count(func(s *Stats) { s.LookupFailures.Add(1) })
}

func (n Normalizer) count(f func(*Stats)) {
	if n.stats != nil {
		f(n.stats)
	}
}

func resolveKind(mediaType string, requested domain.Kind) (domain.Kind, bool) {
	k := requested
	if strings.TrimSpace(mediaType) != "" {
		parsed, ok := domain.ParseKind(mediaType)
		if !ok {
			return "", false
		}
		k = parsed
	}
	switch k {
	case domain.KindMovie, domain.KindTV:
		return k, true
	default:
		return "", false
	}
}

// releaseDate 剧集优先 first_air_date，电影优先 release_date，缺失时互为回退。
func releaseDate(raw catalog.RawItem, kind domain.Kind) domain.Date {
	first, second := raw.ReleaseDate, raw.FirstAirDate
	if kind == domain.KindTV {
		first, second = second, first
	}
	if d, ok := domain.ParseDate(first); ok {
		return d
	}
	d, _ := domain.ParseDate(second)
	return d
}

// roundRating 保留一位小数，.5 远离零进位。
func roundRating(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}
