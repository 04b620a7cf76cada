package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/John-Robertt/trendsync/internal/infra/logx"
)

const (
	// ErrCodeNotFound 表示 --config 指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是工作目录下自动发现的配置文件名（可选）。
const FileName = "trendsync.json"

const (
	TargetFile = "file"
	TargetGist = "gist"
)

const (
	DefaultCatalogBaseURL   = "https://api.themoviedb.org/3"
	DefaultGistAPIBaseURL   = "https://api.github.com"
	DefaultLanguage         = "zh-CN"
	DefaultFallbackLanguage = "en"
	DefaultRegion           = "CN"
	DefaultImageSize        = "original"
	DefaultOffsetHours      = 8
	DefaultConcurrency      = 3
	DefaultIntervalMS       = 100
	DefaultTimeoutSec       = 30
	DefaultRetryAttempts    = 3
	DefaultRetryDelayMS     = 2000
	DefaultOutputPath       = "data/TMDB_Trending.json"
	DefaultGistFile         = "TMDB_Trending.json"
	DefaultIconsFile        = "icons.json"
)

// 环境变量名。凭据只建议通过环境变量注入（CI secret），不要写进配置文件。
const (
	EnvAPIKey      = "TMDB_API_KEY"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvGistID      = "GIST_ID"
	EnvIconGistID  = "ICON_GIST_ID"
	EnvLogLevel    = "TRENDSYNC_LOG_LEVEL"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息，保证覆盖优先级可实现。
type CLIArgs struct {
	ConfigPath string

	Targets    []string
	TargetsSet bool

	LogLevel    string
	LogLevelSet bool

	ReportPath    string
	ReportPathSet bool
}

// FileConfig 对应 trendsync.json 的解析结构。数值字段用指针区分“未设置”与“显式 0”。
type FileConfig struct {
	APIKey                   string       `json:"tmdb_api_key"`
	Language                 string       `json:"language"`
	FallbackLanguage         string       `json:"fallback_language"`
	Region                   string       `json:"region"`
	ImageSize                string       `json:"image_size"`
	TimezoneOffsetHours      *int         `json:"timezone_offset_hours"`
	Concurrency              int          `json:"concurrency"`
	RequestIntervalMS        *int         `json:"request_interval_ms"`
	RequestTimeoutSec        int          `json:"request_timeout_sec"`
	RetryMaxAttempts         int          `json:"retry_max_attempts"`
	RetryDelayMS             *int         `json:"retry_delay_ms"`
	Proxy                    *ProxyConfig `json:"proxy"`
	Targets                  []string     `json:"targets"`
	OutputPath               string       `json:"output_path"`
	GistID                   string       `json:"gist_id"`
	IconGistID               string       `json:"icon_gist_id"`
	GistFile                 string       `json:"gist_file"`
	IconsFile                string       `json:"icons_file"`
	PreferTransparentTVLogos bool         `json:"prefer_transparent_tv_logos"`
	ReportPath               string       `json:"report_path"`
	LogLevel                 string       `json:"log_level"`
	LogFile                  string       `json:"log_file"`
	CatalogBaseURL           string       `json:"catalog_base_url"`
	GistAPIBaseURL           string       `json:"gist_api_base_url"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
// 作为显式值传入 orchestrator，测试无需修改进程环境。
type EffectiveConfig struct {
	APIKey string

	Language         string
	FallbackLanguage string
	Region           string
	ImageSize        string

	TimezoneOffsetHours int

	Concurrency      int
	RequestInterval  time.Duration
	RequestTimeout   time.Duration
	RetryMaxAttempts int
	RetryDelay       time.Duration
	ProxyURL         string

	CatalogBaseURL string
	GistAPIBaseURL string

	Targets    []string
	OutputPath string

	GitHubToken string
	GistID      string
	IconGistID  string
	GistFile    string
	IconsFile   string

	PreferTransparentTVLogos bool

	ReportPath string
	LogLevel   string
	LogFile    string
}

// HasAPIKey 为 false 时整次运行进入降级模式（不发网络请求，产出空文档）。
func (e EffectiveConfig) HasAPIKey() bool { return strings.TrimSpace(e.APIKey) != "" }

// HasGist 表示 Gist 凭据齐全。
func (e EffectiveConfig) HasGist() bool {
	return strings.TrimSpace(e.GitHubToken) != "" && strings.TrimSpace(e.GistID) != ""
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件并与环境变量、CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/trendsync.json（可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// 缺少 TMDB_API_KEY 不是错误（降级模式）。fs 为 nil 时读真实文件系统。
func LoadEffective(fs afero.Fs, cwd string, cli CLIArgs, getenv func(string) string) (EffectiveConfig, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(fs, cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if required && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	eff, err := merge(cwdAbs, cli, fc, getenv)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, getenv func(string) string) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		APIKey:           firstNonEmpty(getenv(EnvAPIKey), fc.APIKey),
		Language:         firstNonEmpty(fc.Language, DefaultLanguage),
		FallbackLanguage: firstNonEmpty(fc.FallbackLanguage, DefaultFallbackLanguage),
		Region:           strings.ToUpper(firstNonEmpty(fc.Region, DefaultRegion)),
		ImageSize:        firstNonEmpty(fc.ImageSize, DefaultImageSize),

		GitHubToken: strings.TrimSpace(getenv(EnvGitHubToken)),
		GistID:      firstNonEmpty(getenv(EnvGistID), fc.GistID),
		GistFile:    firstNonEmpty(fc.GistFile, DefaultGistFile),
		IconsFile:   firstNonEmpty(fc.IconsFile, DefaultIconsFile),

		PreferTransparentTVLogos: fc.PreferTransparentTVLogos,

		LogLevel: firstNonEmpty(getenv(EnvLogLevel), fc.LogLevel),
		LogFile:  strings.TrimSpace(fc.LogFile),
	}
	eff.IconGistID = firstNonEmpty(getenv(EnvIconGistID), fc.IconGistID, eff.GistID)

	eff.TimezoneOffsetHours = DefaultOffsetHours
	if fc.TimezoneOffsetHours != nil {
		eff.TimezoneOffsetHours = *fc.TimezoneOffsetHours
	}
	if eff.TimezoneOffsetHours < -12 || eff.TimezoneOffsetHours > 14 {
		return EffectiveConfig{}, fmt.Errorf("timezone_offset_hours 超出范围 [-12, 14]：%d", eff.TimezoneOffsetHours)
	}

	// 并发：范围 [1, 16]；超出截断。
	eff.Concurrency = clamp(orDefault(fc.Concurrency, DefaultConcurrency), 1, 16)

	intervalMS := DefaultIntervalMS
	if fc.RequestIntervalMS != nil {
		intervalMS = *fc.RequestIntervalMS
	}
	if intervalMS < 0 {
		intervalMS = 0
	}
	eff.RequestInterval = time.Duration(intervalMS) * time.Millisecond

	eff.RequestTimeout = time.Duration(clamp(orDefault(fc.RequestTimeoutSec, DefaultTimeoutSec), 10, 60)) * time.Second
	eff.RetryMaxAttempts = clamp(orDefault(fc.RetryMaxAttempts, DefaultRetryAttempts), 1, 10)

	delayMS := DefaultRetryDelayMS
	if fc.RetryDelayMS != nil {
		delayMS = *fc.RetryDelayMS
	}
	if delayMS < 0 {
		delayMS = 0
	}
	eff.RetryDelay = time.Duration(delayMS) * time.Millisecond

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		if err := validateHTTPURL("proxy.url", eff.ProxyURL); err != nil {
			return EffectiveConfig{}, err
		}
	}

	eff.CatalogBaseURL = strings.TrimRight(firstNonEmpty(fc.CatalogBaseURL, DefaultCatalogBaseURL), "/")
	if err := validateHTTPURL("catalog_base_url", eff.CatalogBaseURL); err != nil {
		return EffectiveConfig{}, err
	}
	eff.GistAPIBaseURL = strings.TrimRight(firstNonEmpty(fc.GistAPIBaseURL, DefaultGistAPIBaseURL), "/")
	if err := validateHTTPURL("gist_api_base_url", eff.GistAPIBaseURL); err != nil {
		return EffectiveConfig{}, err
	}

	eff.OutputPath = absCleanFrom(cwdAbs, firstNonEmpty(fc.OutputPath, DefaultOutputPath))

	reportPath := strings.TrimSpace(fc.ReportPath)
	if cli.ReportPathSet {
		reportPath = strings.TrimSpace(cli.ReportPath)
	}
	if reportPath != "" {
		eff.ReportPath = absCleanFrom(cwdAbs, reportPath)
	}

	if cli.LogLevelSet {
		eff.LogLevel = strings.TrimSpace(cli.LogLevel)
	}
	if _, err := logx.ParseLevel(eff.LogLevel); err != nil {
		return EffectiveConfig{}, err
	}

	// targets：CLI > 配置文件 > 默认（file 必选；gist 凭据齐全时自动启用）
	targets := fc.Targets
	if cli.TargetsSet {
		targets = cli.Targets
	}
	if len(targets) == 0 {
		targets = []string{TargetFile}
		if eff.HasGist() {
			targets = append(targets, TargetGist)
		}
	}
	norm, err := normalizeTargets(targets)
	if err != nil {
		return EffectiveConfig{}, err
	}
	for _, t := range norm {
		if t == TargetGist && !eff.HasGist() {
			return EffectiveConfig{}, fmt.Errorf("target gist 需要同时设置 %s 与 %s", EnvGitHubToken, EnvGistID)
		}
	}
	eff.Targets = norm

	return eff, nil
}

func normalizeTargets(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		switch t {
		case TargetFile, TargetGist:
		case "":
			return nil, fmt.Errorf("target 不能为空")
		default:
			return nil, fmt.Errorf("target 只能是 file 或 gist，实际是 %q", t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(fs afero.Fs, path string) (fc FileConfig, exists bool, err error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
