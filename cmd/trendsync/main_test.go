package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/domain"
)

func newTestCLI(t *testing.T, env map[string]string) (cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	return cli{
		stdout: &stdout,
		stderr: &stderr,
		getenv: func(k string) string { return env[k] },
		fs:     afero.NewMemMapFs(),
		cwd:    t.TempDir(),
		now:    func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}, &stdout, &stderr
}

func TestRun_DegradedModeStdoutOnlyReportJSON(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, nil)

	code := c.dispatch(context.Background(), []string{"run", "--report", "out/report.json"})
	if code != 0 {
		t.Fatalf("期望退出码 0，实际 %d\nstderr=%s", code, stderr.String())
	}

	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if !rr.Degraded || rr.LastUpdated != "2024-06-01 08:00:00" {
		t.Fatalf("report 不符合预期：%+v", rr)
	}
	if !strings.Contains(stderr.String(), "完成：items=0") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	docPath := filepath.Join(c.cwd, "data", "TMDB_Trending.json")
	b, err := afero.ReadFile(c.fs, docPath)
	if err != nil {
		t.Fatalf("期望写入文档 %q：%v", docPath, err)
	}
	if !bytes.Contains(b, []byte(`"today_global": []`)) {
		t.Fatalf("降级模式文档应包含空序列：%s", b)
	}
	if ok, _ := afero.Exists(c.fs, filepath.Join(c.cwd, "out", "report.json")); !ok {
		t.Fatalf("期望写入 report 文件")
	}
}

func TestRun_ConfigErrorReport(t *testing.T) {
	c, stdout, _ := newTestCLI(t, nil)

	code := c.dispatch(context.Background(), []string{"run", "--config", "missing.json"})
	if code != 1 {
		t.Fatalf("期望退出码 1，实际 %d", code)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法 JSON：%v", err)
	}
	if rr.ErrorCode != config.ErrCodeNotFound {
		t.Fatalf("期望 error_code=%q，实际 %q", config.ErrCodeNotFound, rr.ErrorCode)
	}
}

func TestRun_ArgErrors(t *testing.T) {
	c, _, _ := newTestCLI(t, nil)
	for _, args := range [][]string{
		{"run", "--target", "s3"},
		{"run", "--config"},
		{"run", "extra"},
		{"run", "--verbose"},
		{"bogus"},
	} {
		if code := c.dispatch(context.Background(), args); code != 2 {
			t.Fatalf("参数 %v 期望退出码 2，实际 %d", args, code)
		}
	}
}

func TestParseRunArgs(t *testing.T) {
	ra, err := parseRunArgs([]string{"--config=x.json", "--target", "file, GIST", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if ra.ConfigPath != "x.json" || !ra.TargetsSet || len(ra.Targets) != 2 || ra.Targets[1] != "gist" {
		t.Fatalf("解析结果不符合预期：%+v", ra)
	}
	if !ra.LogLevelSet || ra.LogLevel != "debug" {
		t.Fatalf("log level 解析不符合预期：%+v", ra)
	}
}

func TestIcon_LocalLibraryRoundTrip(t *testing.T) {
	c, stdout, stderr := newTestCLI(t, nil)
	ctx := context.Background()

	for _, args := range [][]string{
		{"icon", "add", "logo", "https://img/a.png"},
		{"icon", "add", "logo", "https://img/b.png"},
	} {
		if code := c.dispatch(ctx, args); code != 0 {
			t.Fatalf("%v 期望退出码 0，实际 %d\nstderr=%s", args, code, stderr.String())
		}
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], `"name":"logo_1"`) || !strings.Contains(lines[1], `"is_renamed":true`) {
		t.Fatalf("第二次添加应改名为 logo_1：%q", stdout.String())
	}

	stdout.Reset()
	if code := c.dispatch(ctx, []string{"icon", "rm", "logo"}); code != 0 {
		t.Fatalf("删除期望退出码 0，实际 %d\nstderr=%s", code, stderr.String())
	}
	if code := c.dispatch(ctx, []string{"icon", "rm", "logo"}); code != 1 {
		t.Fatalf("重复删除期望退出码 1，实际 %d", code)
	}
	if code := c.dispatch(ctx, []string{"icon", "list"}); code != 0 {
		t.Fatalf("list 期望退出码 0，实际 %d", code)
	}
	var out struct {
		Icons []domain.IconRecord `json:"icons"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("list 输出不是合法 JSON：%v\n%q", err, stdout.String())
	}
	if len(out.Icons) != 1 || out.Icons[0].Name != "logo_1" {
		t.Fatalf("list 结果不符合预期：%+v", out.Icons)
	}
}

func TestIcon_ArgCount(t *testing.T) {
	c, _, _ := newTestCLI(t, nil)
	if code := c.dispatch(context.Background(), []string{"icon", "add", "only-name"}); code != 2 {
		t.Fatalf("期望退出码 2，实际 %d", code)
	}
	if code := c.dispatch(context.Background(), []string{"icon", "frobnicate"}); code != 2 {
		t.Fatalf("期望退出码 2，实际 %d", code)
	}
}

func TestWriteReportFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	rr := domain.RunReport{RunID: "r"}
	rr.Finalize()
	if err := writeReportFile(fs, "/x/report.json", rr); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := afero.ReadFile(fs, "/x/report.json")
	if err != nil || !bytes.HasSuffix(b, []byte("\n")) {
		t.Fatalf("report 文件不符合预期：err=%v b=%q", err, b)
	}
}
