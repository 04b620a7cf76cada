package run

import (
	"time"

	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/domain"
)

// Observer 用于把“运行进度/阶段结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：三个 pass 并发执行，事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(runID string, eff config.EffectiveConfig)
	// OnPassDone 在某个 pass 结束时调用；items 是该 pass 最终进入文档的条目（只读）。
	OnPassDone(res domain.PassResult, items []domain.MediaItem, dur time.Duration)
	// OnPublishDone 在某个目标写入结束（或被跳过）时调用。
	OnPublishDone(res domain.PublishResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, config.EffectiveConfig)                             {}
func (nopObserver) OnPassDone(domain.PassResult, []domain.MediaItem, time.Duration) {}
func (nopObserver) OnPublishDone(domain.PublishResult)                              {}
