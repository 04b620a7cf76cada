package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/trendsync/internal/app/run"
	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// totalPasses 是一次运行固定的 pass 数。
const totalPasses = 3

// progressUI 是一个“简洁版”的交互终端进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间没有 pass 完成时也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	passesDone int
	items      int

	// maxItemLines 限制每个 pass 打印的条目行数（<=0 表示不打印条目）。
	maxItemLines int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		maxItemLines:       5,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(runID string, eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "normal"
	if !eff.HasAPIKey() {
		mode = "degraded"
	}

	fmt.Fprintf(p.w, "[%s] trendsync run %s (%s)\n", now.Format("15:04:05"), runID, mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  api_key: %s\n", onOff(eff.HasAPIKey()))
	fmt.Fprintf(p.w, "  language: %s (fallback %s)\n", eff.Language, eff.FallbackLanguage)
	fmt.Fprintf(p.w, "  region: %s\n", eff.Region)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  targets: %s\n", strings.Join(eff.Targets, ", "))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	if !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnPassDone(res domain.PassResult, items []domain.MediaItem, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.passesDone++
	p.items += len(items)

	status := "OK"
	switch res.Status {
	case domain.StatusDegraded:
		status = "DEGRADED"
	case domain.StatusFailed:
		status = "FAIL"
	case domain.StatusSkipped:
		status = "SKIP"
	}

	switch res.Status {
	case domain.StatusFailed, domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			p.passesDone, totalPasses, res.Name, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s fetched=%d kept=%d dropped=%d lookup_failures=%d (%s)\n",
			p.passesDone, totalPasses, res.Name, status, res.Fetched, res.Kept, res.Dropped, res.LookupFailures, formatShortDuration(dur),
		)
		for i, it := range items {
			if i >= p.maxItemLines {
				fmt.Fprintf(p.w, "    ... 另有 %d 条\n", len(items)-i)
				break
			}
			fmt.Fprintf(p.w, "    %s\n", formatItemLine(i+1, it))
		}
	}
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPublishDone(res domain.PublishResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.StatusOK:
		fmt.Fprintf(p.w, "发布: %s OK %s\n", res.Target, res.Location)
	default:
		fmt.Fprintf(p.w, "发布: %s %s %s: %s\n", res.Target, strings.ToUpper(res.Status), res.ErrorCode, truncate(res.ErrorMsg, 160))
	}
	p.lastPrinted = time.Now()
	p.stopTickerLocked()
}

// Close 停止 keepalive（重复调用安全）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: passes=%d/%d items=%d elapsed=%s\n",
						p.passesDone, totalPasses, p.items, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// formatItemLine 输出一行条目摘要：排名、标题、类型、评分、logo/横图是否存在。
func formatItemLine(rank int, it domain.MediaItem) string {
	return fmt.Sprintf("%2d. %s [%s] %.1f logo=%s backdrop=%s",
		rank, truncate(it.Title, 40), it.Kind, it.Rating, yesNo(it.LogoURL != ""), yesNo(it.BackdropURL != ""),
	)
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
