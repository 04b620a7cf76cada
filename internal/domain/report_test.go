package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Passes: []PassResult{
			{Name: PassPopularMovies, Status: StatusOK, Kept: 3},
			{Name: PassTodayGlobal, Status: StatusFailed},
			{Name: PassWeekGlobalAll, Status: StatusDegraded, Kept: 2},
		},
		Publish: []PublishResult{
			{Target: "gist", Status: StatusFailed},
			{Target: "file", Status: StatusOK},
		},
	}

	r.Finalize()

	if r.Passes[0].Name != PassTodayGlobal || r.Passes[1].Name != PassWeekGlobalAll || r.Passes[2].Name != PassPopularMovies {
		t.Fatalf("passes 排序不符合契约：%+v", r.Passes)
	}
	if r.Publish[0].Target != "file" || r.Publish[1].Target != "gist" {
		t.Fatalf("publish 排序不符合契约：%+v", r.Publish)
	}
	if r.Summary.Items != 5 || r.Summary.PassesFailed != 1 || r.Summary.PublishOK != 1 || r.Summary.PublishFailed != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
	if r.Published() {
		t.Fatalf("存在失败的 target 时 Published 应为 false")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_NilSlicesBecomeEmpty(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"passes":[]`)) || !bytes.Contains(b, []byte(`"publish":[]`)) {
		t.Fatalf("空切片应输出 []：%s", string(b))
	}
}
