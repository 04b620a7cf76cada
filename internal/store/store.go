// Package store 定义文档存储目标（Gist、本地文件）的统一接口与注册表。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed 标记存储可达、但返回的数据无法解析（例如 Gist 接口返回了非 JSON）。
// 实现用 %w 包装它，调用方用 errors.Is 区分“不可达”与“格式错误”。
var ErrMalformed = errors.New("store: malformed response")

// DocumentStore 是一个“按文件名整体读写”的文档存储。
//
// 约束：
// - Write 是整文件替换，重复写入相同内容是幂等的
// - Read 在文件不存在时返回 found=false 且 err=nil
// - 实现不做缓存；重试由 httpx 层统一负责
type DocumentStore interface {
	Name() string
	// Location 返回 file 在该存储中的可读位置（用于报告与日志）。
	Location(file string) string
	Read(ctx context.Context, file string) (content []byte, found bool, err error)
	Write(ctx context.Context, file string, content []byte, description string) error
}

// Registry 是存储目标的只读注册表（按 name 索引，保留注册顺序）。
type Registry struct {
	byName map[string]DocumentStore
	order  []string
}

func NewRegistry(stores ...DocumentStore) (Registry, error) {
	byName := make(map[string]DocumentStore, len(stores))
	order := make([]string, 0, len(stores))
	for _, s := range stores {
		if s == nil {
			return Registry{}, fmt.Errorf("store 不能为空")
		}
		name := normName(s.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("store.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 store：%q", name)
		}
		byName[name] = s
		order = append(order, name)
	}
	return Registry{byName: byName, order: order}, nil
}

func (r Registry) Get(name string) (DocumentStore, bool) {
	if r.byName == nil {
		return nil, false
	}
	s, ok := r.byName[normName(name)]
	return s, ok
}

// Names 按注册顺序返回全部 store 名。
func (r Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Select 按 names 顺序取出 store；任一未注册即报错。
func (r Registry) Select(names []string) ([]DocumentStore, error) {
	out := make([]DocumentStore, 0, len(names))
	for _, n := range names {
		s, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("store 未注册：%q", normName(n))
		}
		out = append(out, s)
	}
	return out, nil
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
