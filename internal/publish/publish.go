// Package publish 把构建好的文档写到存储目标。
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/store"
)

const (
	ReasonUnreachable = "unreachable"
	ReasonMalformed   = "malformed"
	ReasonWriteFailed = "write_failed"
	ReasonInvalid     = "invalid"
)

// TrendingDescription 是写入 Gist 时附带的描述。
const TrendingDescription = "TMDB Trending Data"

// ErrIconNotFound 表示要删除的图标（或图标库文件本身）不存在。
var ErrIconNotFound = errors.New("icon not found")

// Error 是发布阶段的结构化错误。Reason 取值见 Reason* 常量。
type Error struct {
	Target string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("publish %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("publish %s (%s): %v", e.Reason, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reason 从 error 中提取失败原因；若不是 *Error 则返回空串。
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// Target 是一个存储目标及其中的文件名（本地文件与 Gist 的文件名可以不同）。
type Target struct {
	Store store.DocumentStore
	File  string
}

// Outcome 是单个目标的发布结果。Err 为 nil 表示成功。
type Outcome struct {
	Target   string
	Location string
	Err      error
}

// Publisher 把趋势文档整体替换到每个目标。
type Publisher struct {
	targets []Target
	log     *slog.Logger
}

func NewPublisher(targets []Target, log *slog.Logger) (*Publisher, error) {
	for _, t := range targets {
		if t.Store == nil {
			return nil, errors.New("publish: nil store")
		}
		if strings.TrimSpace(t.File) == "" {
			return nil, fmt.Errorf("publish: target %q 缺少文件名", t.Store.Name())
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{targets: append([]Target(nil), targets...), log: log.With("component", "publish")}, nil
}

// Encode 按固定格式序列化：2 空格缩进、不转义 HTML、末尾换行。相同输入得到相同字节。
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PublishTrending 把 doc 并发写到全部目标，每个目标恰好写一次，不先读取。
//
// 规则：
// - 单个目标失败不影响其他目标
// - 返回的 Outcome 与构造时的目标顺序一致
// - 任一目标失败时 err 非空（errors.Join 汇总）
func (p *Publisher) PublishTrending(ctx context.Context, doc domain.TrendingDocument) ([]Outcome, error) {
	content, err := Encode(doc)
	if err != nil {
		return nil, &Error{Reason: ReasonMalformed, Err: err}
	}

	outcomes := make([]Outcome, len(p.targets))
	var g errgroup.Group
	for i, t := range p.targets {
		i, t := i, t
		outcomes[i] = Outcome{Target: t.Store.Name(), Location: t.Store.Location(t.File)}
		g.Go(func() error {
			if err := t.Store.Write(ctx, t.File, content, TrendingDescription); err != nil {
				outcomes[i].Err = &Error{Target: t.Store.Name(), Reason: ReasonWriteFailed, Err: err}
				p.log.Error("publish failed", "target", t.Store.Name(), "location", outcomes[i].Location, "err", err)
				return nil
			}
			p.log.Info("published", "target", t.Store.Name(), "location", outcomes[i].Location, "bytes", len(content))
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return outcomes, errors.Join(errs...)
}
