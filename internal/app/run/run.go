// Package run 编排一次完整的趋势同步：三个 pass 拉取并规范化，然后一次性发布。
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/trendsync/internal/catalog"
	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/imagesel"
	"github.com/John-Robertt/trendsync/internal/infra/cache"
	"github.com/John-Robertt/trendsync/internal/normalize"
	"github.com/John-Robertt/trendsync/internal/publish"
)

// PopularLimit 是热门电影 pass 保留的原始条目上限（在规范化之前截断）。
const PopularLimit = 15

// Catalog 是编排器对目录客户端的全部依赖。
type Catalog interface {
	Configured() bool
	Trending(ctx context.Context, kind domain.Kind, window catalog.Window) ([]catalog.RawItem, error)
	PopularMovies(ctx context.Context) ([]catalog.RawItem, error)
	Details(ctx context.Context, kind domain.Kind, id int) (catalog.Detail, error)
	Images(ctx context.Context, kind domain.Kind, id int) (catalog.ImageSet, error)
}

// Publisher 把完整文档写到全部目标。
type Publisher interface {
	PublishTrending(ctx context.Context, doc domain.TrendingDocument) ([]publish.Outcome, error)
}

// Deps 是一次运行的外部依赖。Now/NewRunID 为空时使用 time.Now 与 uuid。
type Deps struct {
	Catalog   Catalog
	Publisher Publisher
	Cache     *cache.Store
	Logger    *slog.Logger

	Now      func() time.Time
	NewRunID func() string
}

// Orchestrator 持有一次运行的配置与依赖。
type Orchestrator struct {
	eff  config.EffectiveConfig
	deps Deps
	obs  Observer
	log  *slog.Logger
	norm normalize.Normalizer
}

func New(eff config.EffectiveConfig, deps Deps, obs Observer) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if obs == nil {
		obs = nopObserver{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	imgOpts := imagesel.Options{
		Primary:            imagesel.LocaleOf(eff.Language),
		Fallback:           imagesel.LocaleOf(eff.FallbackLanguage),
		Size:               eff.ImageSize,
		TransparentTVLogos: eff.PreferTransparentTVLogos,
	}
	return &Orchestrator{
		eff:  eff,
		deps: deps,
		obs:  obs,
		log:  log.With("component", "run"),
		norm: normalize.New(deps.Catalog, imgOpts, log),
	}
}

type pass struct {
	name      string
	requested domain.Kind
	limit     int
	fetch     func(ctx context.Context) ([]catalog.RawItem, error)
}

func (o *Orchestrator) passes() []pass {
	c := o.deps.Catalog
	return []pass{
		{
			name:      domain.PassTodayGlobal,
			requested: domain.KindAll,
			fetch: func(ctx context.Context) ([]catalog.RawItem, error) {
				return c.Trending(ctx, domain.KindAll, catalog.WindowDay)
			},
		},
		{
			name:      domain.PassWeekGlobalAll,
			requested: domain.KindAll,
			fetch: func(ctx context.Context) ([]catalog.RawItem, error) {
				return c.Trending(ctx, domain.KindAll, catalog.WindowWeek)
			},
		},
		{
			name:      domain.PassPopularMovies,
			requested: domain.KindMovie,
			limit:     PopularLimit,
			fetch: func(ctx context.Context) ([]catalog.RawItem, error) {
				return c.PopularMovies(ctx)
			},
		},
	}
}

// Build 构建一份完整的趋势文档，并返回每个 pass 的统计。
//
// 规则：
// - 目录未配置时进入降级模式：不发任何请求，三个序列为空，last_updated 照常填写
// - 三个 pass 并发；pass 内条目并发规范化，但输出顺序与目录排名一致
// - 任一 pass 失败只让该序列为空，不影响其他 pass
func (o *Orchestrator) Build(ctx context.Context) (domain.TrendingDocument, []domain.PassResult) {
	configured := o.deps.Catalog != nil && o.deps.Catalog.Configured()
	defs := o.passes()
	results := make([]domain.PassResult, len(defs))
	items := make([][]domain.MediaItem, len(defs))

	if !configured {
		o.log.Warn("catalog api key not configured, publishing empty document")
		for i, p := range defs {
			results[i] = domain.PassResult{
				Name:      p.name,
				Status:    domain.StatusSkipped,
				ErrorCode: domain.ErrCodeMissingAPIKey,
				ErrorMsg:  "未设置 " + config.EnvAPIKey,
			}
			o.obs.OnPassDone(results[i], nil, 0)
		}
	} else {
		var g errgroup.Group
		for i, p := range defs {
			i, p := i, p
			g.Go(func() error {
				started := time.Now()
				items[i], results[i] = o.runPass(ctx, p)
				o.obs.OnPassDone(results[i], items[i], time.Since(started))
				return nil
			})
		}
		_ = g.Wait()
	}

	doc := domain.NewTrendingDocument(o.deps.Now(), o.eff.TimezoneOffsetHours, configured, items[0], items[1], items[2])
	return doc, results
}

func (o *Orchestrator) runPass(ctx context.Context, p pass) ([]domain.MediaItem, domain.PassResult) {
	res := domain.PassResult{Name: p.name, Status: domain.StatusOK}

	raw, err := p.fetch(ctx)
	if err != nil {
		o.log.Error("pass fetch failed", "pass", p.name, "err", err)
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeFetchFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.ErrorCode = domain.ErrCodeCancelled
		}
		res.ErrorMsg = err.Error()
		return nil, res
	}
	if p.limit > 0 && len(raw) > p.limit {
		raw = raw[:p.limit]
	}
	res.Fetched = len(raw)

	var st normalize.Stats
	n := o.norm.WithStats(&st)

	type outcome struct {
		item domain.MediaItem
		ok   bool
	}
	mapper := iter.Mapper[catalog.RawItem, outcome]{MaxGoroutines: max(1, o.eff.Concurrency)}
	outs := mapper.Map(raw, func(r *catalog.RawItem) outcome {
		item, ok := n.Normalize(ctx, *r, p.requested)
		return outcome{item: item, ok: ok}
	})

	items := make([]domain.MediaItem, 0, len(outs))
	for _, out := range outs {
		if out.ok {
			items = append(items, out.item)
		}
	}

	res.Kept = len(items)
	res.Dropped = int(st.Dropped.Load())
	res.LookupFailures = int(st.LookupFailures.Load())
	if res.LookupFailures > 0 {
		res.Status = domain.StatusDegraded
		res.ErrorCode = domain.ErrCodeNormalizeDegraded
		res.ErrorMsg = fmt.Sprintf("%d 次逐条查询失败，相关字段已降级为空", res.LookupFailures)
	}
	o.log.Info("pass done", "pass", p.name, "fetched", res.Fetched, "kept", res.Kept, "dropped", res.Dropped, "lookup_failures", res.LookupFailures)
	return items, res
}

// Execute 执行一次完整运行：Build，然后把同一份文档发布到全部目标（每个目标恰好一次）。
// ctx 在发布前已取消时不写任何目标。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	o := New(eff, deps, obs)
	return o.Execute(ctx)
}

func (o *Orchestrator) Execute(ctx context.Context) domain.RunReport {
	rr := domain.RunReport{
		RunID:     o.deps.NewRunID(),
		StartedAt: o.deps.Now(),
	}
	o.obs.OnStart(rr.RunID, o.eff)
	o.log.Info("run started", "run_id", rr.RunID, "targets", o.eff.Targets)

	doc, passes := o.Build(ctx)
	rr.Passes = passes
	rr.LastUpdated = doc.LastUpdated
	rr.Degraded = !doc.Metadata.APIKeyConfigured

	rr.Publish = o.publish(ctx, doc)

	rr.Cache.Hits, rr.Cache.Misses = o.deps.Cache.Stats()
	rr.FinishedAt = o.deps.Now()
	rr.Finalize()
	o.log.Info("run finished", "run_id", rr.RunID, "items", rr.Summary.Items, "publish_ok", rr.Summary.PublishOK, "publish_failed", rr.Summary.PublishFailed)
	return rr
}

func (o *Orchestrator) publish(ctx context.Context, doc domain.TrendingDocument) []domain.PublishResult {
	if o.deps.Publisher == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		o.log.Warn("context cancelled before publish, nothing written", "err", err)
		out := make([]domain.PublishResult, 0, len(o.eff.Targets))
		for _, t := range o.eff.Targets {
			r := domain.PublishResult{Target: t, Status: domain.StatusSkipped, ErrorCode: domain.ErrCodeCancelled, ErrorMsg: err.Error()}
			o.obs.OnPublishDone(r)
			out = append(out, r)
		}
		return out
	}

	outcomes, _ := o.deps.Publisher.PublishTrending(ctx, doc)
	out := make([]domain.PublishResult, 0, len(outcomes))
	for _, oc := range outcomes {
		r := domain.PublishResult{Target: oc.Target, Location: oc.Location, Status: domain.StatusOK}
		if oc.Err != nil {
			r.Status = domain.StatusFailed
			r.ErrorCode = domain.ErrCodePublishFailed
			r.ErrorMsg = oc.Err.Error()
		}
		o.obs.OnPublishDone(r)
		out = append(out, r)
	}
	return out
}
