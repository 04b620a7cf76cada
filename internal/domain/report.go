package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// 错误码按阶段命名（fetch / normalize / publish），用于定位是哪一步失败。
const (
	ErrCodeFetchFailed       = "fetch_failed"
	ErrCodeNormalizeDegraded = "normalize_degraded"
	ErrCodePublishFailed     = "publish_failed"
	ErrCodeMissingAPIKey     = "missing_api_key"
	ErrCodeCancelled         = "cancelled"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
)

// 三个固定 pass 的名字，同时也是文档里对应序列的 JSON key。
const (
	PassTodayGlobal   = "today_global"
	PassWeekGlobalAll = "week_global_all"
	PassPopularMovies = "popular_movies"
)

var passOrder = map[string]int{
	PassTodayGlobal:   0,
	PassWeekGlobalAll: 1,
	PassPopularMovies: 2,
}

// RunReport 是对外稳定输出（report 文件 / stdout JSON）的结构。
type RunReport struct {
	RunID       string `json:"run_id"`
	Degraded    bool   `json:"degraded"`
	LastUpdated string `json:"last_updated"`

	// ErrorCode/ErrorMsg 只在运行无法开始（例如配置错误）时填写。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary   `json:"summary"`
	Passes  []PassResult    `json:"passes"`
	Publish []PublishResult `json:"publish"`
	Cache   CacheStats      `json:"cache"`
}

type ReportSummary struct {
	Items         int `json:"items"`
	PassesFailed  int `json:"passes_failed"`
	PublishOK     int `json:"publish_ok"`
	PublishFailed int `json:"publish_failed"`
}

type PassResult struct {
	Name           string `json:"name"`
	Status         string `json:"status"`
	Fetched        int    `json:"fetched"`
	Kept           int    `json:"kept"`
	Dropped        int    `json:"dropped"`
	LookupFailures int    `json:"lookup_failures"`
	ErrorCode      string `json:"error_code"`
	ErrorMsg       string `json:"error_msg"`
}

type PublishResult struct {
	Target    string `json:"target"`
	Location  string `json:"location"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type CacheStats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) passes 按固定顺序排序，publish 按 target 字典序排序
// 3) summary 由 passes/publish 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Passes == nil {
		r.Passes = []PassResult{}
	}
	if r.Publish == nil {
		r.Publish = []PublishResult{}
	}

	sort.SliceStable(r.Passes, func(i, j int) bool {
		return rank(r.Passes[i].Name) < rank(r.Passes[j].Name)
	})
	sort.SliceStable(r.Publish, func(i, j int) bool { return r.Publish[i].Target < r.Publish[j].Target })

	var s ReportSummary
	for _, p := range r.Passes {
		s.Items += p.Kept
		if p.Status == StatusFailed {
			s.PassesFailed++
		}
	}
	for _, p := range r.Publish {
		switch p.Status {
		case StatusOK:
			s.PublishOK++
		case StatusFailed:
			s.PublishFailed++
		}
	}
	r.Summary = s
}

// Published 表示至少一个目标写入成功且没有目标失败。
func (r RunReport) Published() bool {
	return r.Summary.PublishOK > 0 && r.Summary.PublishFailed == 0
}

func rank(name string) int {
	if n, ok := passOrder[name]; ok {
		return n
	}
	return len(passOrder)
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
