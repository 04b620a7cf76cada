package cache

import (
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize 覆盖一次运行的全部 detail/images 响应（三个列表合计不超过 ~60 条，每条两次查询）。
const DefaultSize = 256

// Store 是一次运行内的目录响应缓存（今日/本周趋势大量重叠，命中可省掉一半查询）。
//
// 约束：
// - 只缓存成功解码的原始响应体，失败不缓存（下一次仍会重试网络）
// - key 不包含凭据
// - 并发安全（lru.Cache 自带锁；计数器用 atomic）
type Store struct {
	c *lru.Cache[string, []byte]

	hits   atomic.Int64
	misses atomic.Int64
}

func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

// Key 由若干段拼接，例如 Key("images", "tv", "123", "zh")。
func Key(parts ...string) string {
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, "|")
}

func (s *Store) Get(key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	b, ok := s.c.Get(key)
	if ok {
		s.hits.Add(1)
		return b, true
	}
	s.misses.Add(1)
	return nil, false
}

func (s *Store) Put(key string, b []byte) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return fmt.Errorf("cache key 不能为空")
	}
	s.c.Add(key, b)
	return nil
}

// Stats 返回命中与未命中次数。
func (s *Store) Stats() (hits, misses int) {
	if s == nil {
		return 0, 0
	}
	return int(s.hits.Load()), int(s.misses.Load())
}
