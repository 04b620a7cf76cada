// Package gist 把文档存到 GitHub Gist 的某个文件里。
package gist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/trendsync/internal/infra/httpx"
	"github.com/John-Robertt/trendsync/internal/store"
)

// Name 是 Gist 目标在注册表中的名字。
const Name = "gist"

// Options 配置 Store。
type Options struct {
	BaseURL string
	Token   string
	GistID  string
	HTTP    *httpx.Client
}

// Store 读写单个 gist 内的文件。
//
// 约束：
// - 写入是 PATCH 整文件替换（幂等，允许重试）
// - 读取时 gist 不存在是错误；gist 存在但文件不存在返回 found=false
type Store struct {
	base   string
	token  string
	gistID string
	http   *httpx.Client
}

func New(opts Options) (*Store, error) {
	if opts.HTTP == nil {
		return nil, errors.New("gist: nil http client")
	}
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("gist: token 不能为空")
	}
	if strings.TrimSpace(opts.GistID) == "" {
		return nil, errors.New("gist: gist id 不能为空")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gist: base url 不能为空")
	}
	return &Store{
		base:   base,
		token:  strings.TrimSpace(opts.Token),
		gistID: strings.TrimSpace(opts.GistID),
		http:   opts.HTTP,
	}, nil
}

func (s *Store) Name() string { return Name }

func (s *Store) Location(file string) string {
	return fmt.Sprintf("gist:%s/%s", s.gistID, file)
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gistDoc struct {
	Description string              `json:"description,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

func (s *Store) Read(ctx context.Context, file string) ([]byte, bool, error) {
	var doc gistDoc
	if err := s.http.GetJSON(ctx, s.gistURL(), s.header(), &doc); err != nil {
		var de *httpx.DecodeError
		if errors.As(err, &de) {
			return nil, false, fmt.Errorf("%w: %w", store.ErrMalformed, err)
		}
		return nil, false, err
	}
	f, ok := doc.Files[file]
	if !ok {
		return nil, false, nil
	}
	// 大文件在 gist API 里会被截断，完整内容需要从 raw_url 取。
	if f.Truncated && f.RawURL != "" {
		b, err := s.http.Do(ctx, http.MethodGet, f.RawURL, s.header(), nil)
		if err != nil {
			return nil, false, err
		}
		return b, true, nil
	}
	return []byte(f.Content), true, nil
}

func (s *Store) Write(ctx context.Context, file string, content []byte, description string) error {
	body, err := json.Marshal(gistDoc{
		Description: description,
		Files:       map[string]gistFile{file: {Content: string(content)}},
	})
	if err != nil {
		return err
	}
	h := s.header()
	h.Set("Content-Type", "application/json")
	_, err = s.http.Do(ctx, http.MethodPatch, s.gistURL(), h, body)
	return err
}

func (s *Store) gistURL() string {
	return s.base + "/gists/" + url.PathEscape(s.gistID)
}

func (s *Store) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "token "+s.token)
	h.Set("Accept", "application/vnd.github.v3+json")
	return h
}
