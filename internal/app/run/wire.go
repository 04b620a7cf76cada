package run

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/John-Robertt/trendsync/internal/catalog"
	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/imagesel"
	"github.com/John-Robertt/trendsync/internal/infra/cache"
	"github.com/John-Robertt/trendsync/internal/infra/httpx"
	"github.com/John-Robertt/trendsync/internal/publish"
	"github.com/John-Robertt/trendsync/internal/store"
	"github.com/John-Robertt/trendsync/internal/store/gist"
	"github.com/John-Robertt/trendsync/internal/store/localfile"
)

// NewHTTPClient 按配置创建共享的 httpx.Client（目录与 Gist 共用同一个限速器）。
func NewHTTPClient(eff config.EffectiveConfig, log *slog.Logger) (*httpx.Client, error) {
	hc, err := httpx.New(httpx.Options{
		ProxyURL: eff.ProxyURL,
		Timeout:  eff.RequestTimeout,
		Policy: httpx.Policy{
			MaxAttempts: eff.RetryMaxAttempts,
			Backoff:     httpx.LinearBackoff(eff.RetryDelay),
		},
		Interval: eff.RequestInterval,
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}
	return hc, nil
}

// NewDeps 组装一次运行的真实依赖。
func NewDeps(eff config.EffectiveConfig, fs afero.Fs, log *slog.Logger) (Deps, error) {
	if log == nil {
		log = slog.Default()
	}
	hc, err := NewHTTPClient(eff, log)
	if err != nil {
		return Deps{}, err
	}
	cs, err := cache.New(cache.DefaultSize)
	if err != nil {
		return Deps{}, err
	}
	cat, err := catalog.New(catalog.Options{
		BaseURL:        eff.CatalogBaseURL,
		APIKey:         eff.APIKey,
		Language:       eff.Language,
		ImageLanguages: []string{imagesel.LocaleOf(eff.Language), imagesel.LocaleOf(eff.FallbackLanguage)},
		Region:         eff.Region,
		HTTP:           hc,
		Cache:          cs,
		Logger:         log,
	})
	if err != nil {
		return Deps{}, err
	}
	targets, err := Targets(eff, fs, hc)
	if err != nil {
		return Deps{}, err
	}
	pub, err := publish.NewPublisher(targets, log)
	if err != nil {
		return Deps{}, err
	}
	return Deps{Catalog: cat, Publisher: pub, Cache: cs, Logger: log}, nil
}

// Targets 注册全部可用的存储，并按 eff.Targets 选出发布目标。
//
// 规则：
// - file 总是可用，写到 output_path
// - gist 仅在 token 与 gist id 齐全时注册，写到 gist_file
func Targets(eff config.EffectiveConfig, fs afero.Fs, hc *httpx.Client) ([]publish.Target, error) {
	lf, err := localfile.New(fs, filepath.Dir(eff.OutputPath))
	if err != nil {
		return nil, err
	}
	stores := []store.DocumentStore{lf}
	files := map[string]string{localfile.Name: filepath.Base(eff.OutputPath)}

	if eff.HasGist() {
		gs, err := gist.New(gist.Options{BaseURL: eff.GistAPIBaseURL, Token: eff.GitHubToken, GistID: eff.GistID, HTTP: hc})
		if err != nil {
			return nil, err
		}
		stores = append(stores, gs)
		files[gist.Name] = eff.GistFile
	}

	reg, err := store.NewRegistry(stores...)
	if err != nil {
		return nil, err
	}
	selected, err := reg.Select(eff.Targets)
	if err != nil {
		return nil, err
	}
	out := make([]publish.Target, 0, len(selected))
	for _, s := range selected {
		out = append(out, publish.Target{Store: s, File: files[s.Name()]})
	}
	return out, nil
}

// IconLibrary 创建图标库：有 Gist 凭据时使用 icon_gist_id 指向的 gist，否则落在 output_path 所在目录。
func IconLibrary(eff config.EffectiveConfig, fs afero.Fs, hc *httpx.Client, now func() time.Time) (*publish.Icons, error) {
	var s store.DocumentStore
	if eff.GitHubToken != "" && eff.IconGistID != "" {
		gs, err := gist.New(gist.Options{BaseURL: eff.GistAPIBaseURL, Token: eff.GitHubToken, GistID: eff.IconGistID, HTTP: hc})
		if err != nil {
			return nil, err
		}
		s = gs
	} else {
		lf, err := localfile.New(fs, filepath.Dir(eff.OutputPath))
		if err != nil {
			return nil, err
		}
		s = lf
	}
	return publish.NewIcons(s, eff.IconsFile, eff.TimezoneOffsetHours, now)
}
