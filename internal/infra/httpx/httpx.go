package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultMaxAttempts     = 3
	DefaultRetryDelay      = 2 * time.Second
	DefaultRequestInterval = 100 * time.Millisecond

	userAgent    = "trendsync/1.0 (+https://github.com/John-Robertt/trendsync)"
	maxBodyBytes = 32 << 20
)

// Policy 描述有界重试策略。Backoff 的参数是“已失败的次数”（从 1 开始）。
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearBackoff 返回 base * attempt 的线性退避。
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(attempt)
	}
}

// NoBackoff 用于测试：重试之间不等待。
func NoBackoff(int) time.Duration { return 0 }

// DefaultPolicy 是 3 次尝试、2s 线性退避；Options.Policy 的零值字段从这里补齐。
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Backoff: LinearBackoff(DefaultRetryDelay)}
}

// StatusError 表示服务端返回了非 2xx。
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// DecodeError 表示 2xx 响应体不是预期的 JSON。该错误不重试。
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.URL, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// Transport 给每个请求补齐 User-Agent，并在代理模式下禁用连接复用。
type Transport struct {
	Base *http.Transport

	UserAgent string

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}
	// Clone 避免在 RoundTripper 内部修改调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// Options 配置 Client。零值字段使用默认值。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	Policy   Policy

	// Interval 是相邻两次请求（含重试）之间的最小间隔；<=0 表示不限速。
	Interval time.Duration

	Logger *slog.Logger
}

// Client 是唯一做网络 I/O 的地方：限速 + 有界重试 + 单请求超时。
// 无共享可变状态（limiter 本身并发安全），可被多个 goroutine 同时使用。
type Client struct {
	hc      *http.Client
	policy  Policy
	limiter *rate.Limiter
	log     *slog.Logger
}

func New(opts Options) (*Client, error) {
	hc, err := newHTTPClient(strings.TrimSpace(opts.ProxyURL), opts.Timeout)
	if err != nil {
		return nil, err
	}

	p := DefaultPolicy()
	if opts.Policy.MaxAttempts >= 1 {
		p.MaxAttempts = opts.Policy.MaxAttempts
	}
	if opts.Policy.Backoff != nil {
		p.Backoff = opts.Policy.Backoff
	}

	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		hc:      hc,
		policy:  p,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("component", "httpx"),
	}, nil
}

func newHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式下每个请求都新建连接，不复用代理连接。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{
			Base:              base,
			UserAgent:         userAgent,
			DisableKeepAlives: disableKeepAlives,
		},
		Timeout: timeout,
	}, nil
}

// Do 发送请求并返回 2xx 响应体。
//
// 规则：
// - 传输层错误与非 2xx 都会重试，最多 Policy.MaxAttempts 次
// - body 在每次尝试时重放（调用方只应对幂等请求传 body）
// - ctx 取消后立即停止，不再重试
func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header, body []byte) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			return c.once(ctx, method, rawURL, header, body)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.policy.MaxAttempts)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return c.policy.Backoff(int(n) + 1)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug("request failed, retrying", "method", method, "url", redact(rawURL), "attempt", n+1, "err", err)
		}),
	)
}

// GetJSON 发送 GET 并把响应体解码到 out。解码失败返回 *DecodeError（不重试）。
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	b, err := c.Do(ctx, http.MethodGet, rawURL, header, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &DecodeError{URL: redact(rawURL), Err: err}
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, rawURL string, header http.Header, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, retry.Unrecoverable(redactErr(err, rawURL))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, redactErr(err, rawURL)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: redact(rawURL), StatusCode: resp.StatusCode, Body: snippet(b)}
	}
	return b, nil
}

// redact 去掉 URL 中的凭据类查询参数，避免写进日志与错误信息。
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// redactErr 把传输层错误（*url.Error 会带上完整 URL）里的 URL 替换为脱敏版本。
func redactErr(err error, rawURL string) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: redact(rawURL), Err: ue.Err}
	}
	return err
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
