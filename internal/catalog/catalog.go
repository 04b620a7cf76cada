package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/infra/cache"
	"github.com/John-Robertt/trendsync/internal/infra/httpx"
)

// Window 是趋势统计窗口。
type Window string

const (
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

const (
	ReasonUnreachable = "unreachable"
	ReasonMalformed   = "malformed"
)

// ErrNotConfigured 表示未配置 API key；调用方应在此之前走降级路径。
var ErrNotConfigured = errors.New("catalog api key 未配置")

// Failure 是目录调用的统一失败类型，调用方一律按“无数据”处理。
type Failure struct {
	Endpoint string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("catalog %s (%s): %v", f.Endpoint, f.Reason(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Reason 把底层错误归类为 unreachable（传输/状态码）或 malformed（响应无法解码）。
func (f *Failure) Reason() string {
	var de *httpx.DecodeError
	if errors.As(f.Err, &de) {
		return ReasonMalformed
	}
	var se *json.SyntaxError
	if errors.As(f.Err, &se) {
		return ReasonMalformed
	}
	return ReasonUnreachable
}

// Options 配置 Client。
type Options struct {
	BaseURL  string
	APIKey   string
	Language string
	// ImageLanguages 是 images 接口 include_image_language 的语言列表（不含 null，null 总是追加在末尾）。
	ImageLanguages []string
	Region         string

	HTTP   *httpx.Client
	Cache  *cache.Store
	Logger *slog.Logger
}

// Client 封装四个目录接口。无可变状态，可并发使用。
type Client struct {
	base       string
	apiKey     string
	language   string
	imageLangs string
	region     string

	http  *httpx.Client
	cache *cache.Store
	log   *slog.Logger
}

func New(opts Options) (*Client, error) {
	if opts.HTTP == nil {
		return nil, errors.New("catalog: nil http client")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog: base url 不能为空")
	}
	langs := make([]string, 0, len(opts.ImageLanguages)+1)
	seen := map[string]struct{}{}
	for _, l := range opts.ImageLanguages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		langs = append(langs, l)
	}
	langs = append(langs, "null")

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:       base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		language:   strings.TrimSpace(opts.Language),
		imageLangs: strings.Join(langs, ","),
		region:     strings.TrimSpace(opts.Region),
		http:       opts.HTTP,
		cache:      opts.Cache,
		log:        log.With("component", "catalog"),
	}, nil
}

// Configured 报告是否设置了 API key。
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// Trending 拉取 /trending/{kind}/{window}。
func (c *Client) Trending(ctx context.Context, kind domain.Kind, window Window) ([]RawItem, error) {
	endpoint := fmt.Sprintf("/trending/%s/%s", kind, window)
	var page listPage
	if err := c.get(ctx, endpoint, nil, "", &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// PopularMovies 拉取 /movie/popular 的第一页（按地区）。
func (c *Client) PopularMovies(ctx context.Context) ([]RawItem, error) {
	q := url.Values{}
	q.Set("page", "1")
	if c.region != "" {
		q.Set("region", c.region)
	}
	var page listPage
	if err := c.get(ctx, "/movie/popular", q, "", &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// Details 拉取 /{kind}/{id}；结果按运行缓存。
func (c *Client) Details(ctx context.Context, kind domain.Kind, id int) (Detail, error) {
	endpoint := fmt.Sprintf("/%s/%d", kind, id)
	key := cache.Key("detail", string(kind), strconv.Itoa(id), c.language)
	var d Detail
	if err := c.get(ctx, endpoint, nil, key, &d); err != nil {
		return Detail{}, err
	}
	return d, nil
}

// Images 拉取 /{kind}/{id}/images；结果按运行缓存。
func (c *Client) Images(ctx context.Context, kind domain.Kind, id int) (ImageSet, error) {
	endpoint := fmt.Sprintf("/%s/%d/images", kind, id)
	q := url.Values{}
	q.Set("include_image_language", c.imageLangs)
	key := cache.Key("images", string(kind), strconv.Itoa(id), c.imageLangs)
	var s ImageSet
	if err := c.get(ctx, endpoint, q, key, &s); err != nil {
		return ImageSet{}, err
	}
	return s, nil
}

// get 是所有目录调用的唯一出口。
//
// 规则：
// - 每次调用都带 api_key 与 language
// - cacheKey 非空时先查缓存；只有成功解码的响应体才写入缓存
// - 任何失败都包装为 *Failure
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, cacheKey string, out any) error {
	if !c.Configured() {
		return &Failure{Endpoint: endpoint, Err: ErrNotConfigured}
	}

	if cacheKey != "" {
		if b, ok := c.cache.Get(cacheKey); ok {
			if err := json.Unmarshal(b, out); err == nil {
				return nil
			}
		}
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	rawURL := c.base + endpoint + "?" + q.Encode()

	b, err := c.http.Do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		c.log.Debug("catalog request failed", "endpoint", endpoint, "err", err)
		return &Failure{Endpoint: endpoint, Err: err}
	}
	if err := json.Unmarshal(b, out); err != nil {
		c.log.Debug("catalog response malformed", "endpoint", endpoint, "err", err)
		return &Failure{Endpoint: endpoint, Err: &httpx.DecodeError{URL: endpoint, Err: err}}
	}
	if cacheKey != "" {
		_ = c.cache.Put(cacheKey, b)
	}
	return nil
}
