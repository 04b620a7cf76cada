package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/John-Robertt/trendsync/internal/app/run"
	"github.com/John-Robertt/trendsync/internal/config"
	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/infra/fsx"
	"github.com/John-Robertt/trendsync/internal/infra/logx"
	"github.com/John-Robertt/trendsync/internal/publish"
)

// cli 汇总进程级依赖，测试可以替换为内存实现。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	fs     afero.Fs
	cwd    string
	now    func() time.Time

	// stdoutTTY 为 true 时 stdout 输出人类可读摘要，否则输出 JSON。
	stdoutTTY bool
	// progress 非空时启用进度输出（仅交互终端）。
	progress io.Writer
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(1)
	}
	progressW, _ := pickProgressWriter()
	c := cli{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		getenv:    os.Getenv,
		fs:        afero.NewOsFs(),
		cwd:       cwd,
		now:       time.Now,
		stdoutTTY: isTTY(os.Stdout),
		progress:  progressW,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := c.dispatch(ctx, args)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

func (c cli) dispatch(ctx context.Context, args []string) int {
	switch args[0] {
	case "run":
		return c.runCmd(ctx, args[1:])
	case "icon":
		return c.iconCmd(ctx, args[1:])
	default:
		fmt.Fprintf(c.stderr, "未知命令：%q\n\n", args[0])
		printUsage(c.stderr)
		return 2
	}
}

func (c cli) runCmd(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage(c.stdout)
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		printRunUsage(c.stderr)
		return 2
	}

	eff, err := config.LoadEffective(c.fs, c.cwd, ra.CLIArgs, c.getenv)
	if err != nil {
		c.emitReport(reportForConfigError(c.now(), err))
		return 1
	}

	log, closeLog, err := logx.New(logx.Options{Level: eff.LogLevel, File: eff.LogFile, Stderr: c.stderr})
	if err != nil {
		c.emitReport(reportForConfigError(c.now(), &config.Error{Code: config.ErrCodeInvalid, Err: err}))
		return 1
	}
	defer func() { _ = closeLog() }()

	deps, err := run.NewDeps(eff, c.fs, log)
	if err != nil {
		c.emitReport(reportForConfigError(c.now(), &config.Error{Code: config.ErrCodeInvalid, Err: err}))
		return 1
	}
	deps.Now = c.now

	var obs run.Observer
	if c.progress != nil {
		ui := newProgressUI(c.progress)
		defer ui.Close()
		obs = ui
	}

	rr := run.Execute(ctx, eff, deps, obs)

	if eff.ReportPath != "" {
		if err := writeReportFile(c.fs, eff.ReportPath, rr); err != nil {
			fmt.Fprintf(c.stderr, "写入 report 失败：%v\n", err)
			c.emitReport(rr)
			return 1
		}
	}

	c.emitReport(rr)
	if c.progress != nil {
		emitLocations(c.progress, eff, rr)
	}
	if rr.Published() {
		return 0
	}
	return 1
}

type runArgs struct {
	config.CLIArgs
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		name, val, hasVal := strings.Cut(a, "=")
		switch name {
		case "--config", "--target", "--log-level", "--report":
		default:
			if strings.HasPrefix(a, "-") {
				return runArgs{}, fmt.Errorf("未知参数 %q", a)
			}
			return runArgs{}, fmt.Errorf("多余的参数 %q", a)
		}
		if !hasVal {
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			val = args[i]
		}

		switch name {
		case "--config":
			if strings.TrimSpace(val) == "" {
				return runArgs{}, fmt.Errorf("--config 不能为空")
			}
			ra.ConfigPath = val
		case "--target":
			for _, t := range strings.Split(val, ",") {
				t = strings.ToLower(strings.TrimSpace(t))
				switch t {
				case config.TargetFile, config.TargetGist:
				default:
					return runArgs{}, fmt.Errorf("--target 只能是 file 或 gist，实际是 %q", t)
				}
				ra.Targets = append(ra.Targets, t)
			}
			ra.TargetsSet = true
		case "--log-level":
			ra.LogLevel = val
			ra.LogLevelSet = true
		case "--report":
			ra.ReportPath = val
			ra.ReportPathSet = true
		}
	}
	return ra, nil
}

func (c cli) iconCmd(ctx context.Context, args []string) int {
	if len(args) == 0 || isHelp(args[0]) {
		printIconUsage(c.stdout)
		return 0
	}

	sub := args[0]
	rest, cfgPath, err := splitConfigFlag(args[1:])
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		printIconUsage(c.stderr)
		return 2
	}

	want := map[string]int{"add": 2, "list": 0, "rm": 1}
	n, ok := want[sub]
	if !ok {
		fmt.Fprintf(c.stderr, "未知 icon 子命令：%q\n\n", sub)
		printIconUsage(c.stderr)
		return 2
	}
	if len(rest) != n {
		fmt.Fprintf(c.stderr, "参数错误：icon %s 需要 %d 个参数，实际 %d 个\n\n", sub, n, len(rest))
		printIconUsage(c.stderr)
		return 2
	}

	eff, err := config.LoadEffective(c.fs, c.cwd, config.CLIArgs{ConfigPath: cfgPath}, c.getenv)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	log, closeLog, err := logx.New(logx.Options{Level: eff.LogLevel, File: eff.LogFile, Stderr: c.stderr})
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	hc, err := run.NewHTTPClient(eff, log)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	icons, err := run.IconLibrary(eff, c.fs, hc, c.now)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化图标库失败：%v\n", err)
		return 1
	}

	switch sub {
	case "add":
		res, err := icons.Append(ctx, rest[0], rest[1])
		if err != nil {
			fmt.Fprintf(c.stderr, "添加图标失败（%s）：%v\n", publish.Reason(err), err)
			return 1
		}
		if c.stdoutTTY {
			note := ""
			if res.IsRenamed {
				note = fmt.Sprintf("（%q 已存在，已改名）", rest[0])
			}
			fmt.Fprintf(c.stdout, "已添加：%s -> %s%s\n", res.Record.Name, res.Record.URL, note)
		} else {
			_ = json.NewEncoder(c.stdout).Encode(map[string]any{
				"name":       res.Record.Name,
				"url":        res.Record.URL,
				"is_renamed": res.IsRenamed,
				"location":   icons.Location(),
			})
		}
	case "list":
		list, err := icons.List(ctx)
		if err != nil {
			fmt.Fprintf(c.stderr, "读取图标库失败（%s）：%v\n", publish.Reason(err), err)
			return 1
		}
		if c.stdoutTTY {
			for _, r := range list {
				fmt.Fprintf(c.stdout, "%s\t%s\t%s\n", r.Name, r.URL, r.UploadTime)
			}
			fmt.Fprintf(c.stdout, "共 %d 个图标（%s）\n", len(list), icons.Location())
		} else {
			_ = json.NewEncoder(c.stdout).Encode(map[string]any{"icons": list})
		}
	case "rm":
		if err := icons.Remove(ctx, rest[0]); err != nil {
			if errors.Is(err, publish.ErrIconNotFound) {
				fmt.Fprintf(c.stderr, "图标不存在：%q\n", rest[0])
			} else {
				fmt.Fprintf(c.stderr, "删除图标失败（%s）：%v\n", publish.Reason(err), err)
			}
			return 1
		}
		fmt.Fprintf(c.stderr, "已删除：%s\n", rest[0])
	}
	return 0
}

// splitConfigFlag 从参数中取出 --config，返回剩余的位置参数。
func splitConfigFlag(args []string) (rest []string, cfgPath string, err error) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("--config 需要一个值")
			}
			i++
			cfgPath = args[i]
		case strings.HasPrefix(a, "--config="):
			cfgPath = strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-"):
			return nil, "", fmt.Errorf("未知参数 %q", a)
		default:
			rest = append(rest, a)
		}
	}
	return rest, cfgPath, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  trendsync run [--config path] [--target file,gist] [--log-level level] [--report path]
  trendsync icon add <name> <url> [--config path]
  trendsync icon list [--config path]
  trendsync icon rm <name> [--config path]

命令：
  run    拉取趋势数据并发布文档
  icon   管理图标库

使用 "trendsync run --help" 查看详细说明。
`)
}

func printRunUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  trendsync run [--config path] [--target file,gist] [--log-level level] [--report path]

参数：
  --config     配置文件路径（未指定则尝试 ./trendsync.json）
  --target     发布目标，逗号分隔：file|gist（未指定则读配置；最终默认 file，凭据齐全时加 gist）
  --log-level  debug|info|warn|error
  --report     把 RunReport 写到该文件
  -h, --help   显示帮助

环境变量：
  TMDB_API_KEY   未设置时进入降级模式（发布空文档）
  GITHUB_TOKEN   Gist 写入凭据
  GIST_ID        趋势文档所在的 gist
`)
}

func printIconUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  trendsync icon add <name> <url> [--config path]   追加图标（同名时自动改为 name_N）
  trendsync icon list [--config path]                列出图标
  trendsync icon rm <name> [--config path]           删除图标

环境变量：
  GITHUB_TOKEN + ICON_GIST_ID（或 GIST_ID）   图标库所在的 gist；未设置时使用本地 icons.json
`)
}

func (c cli) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：items=%d passes_failed=%d publish_ok=%d publish_failed=%d",
		rr.Summary.Items, rr.Summary.PassesFailed, rr.Summary.PublishOK, rr.Summary.PublishFailed,
	)
	if rr.Degraded {
		summary += " (降级模式：未设置 " + config.EnvAPIKey + ")"
	}

	if c.stdoutTTY {
		fmt.Fprintln(c.stdout, summary)
		if rr.ErrorCode != "" {
			fmt.Fprintf(c.stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		for _, p := range rr.Passes {
			if p.Status == domain.StatusFailed {
				fmt.Fprintf(c.stderr, "%s %s: %s\n", p.Name, p.ErrorCode, p.ErrorMsg)
			}
		}
		for _, p := range rr.Publish {
			if p.Status != domain.StatusOK {
				fmt.Fprintf(c.stderr, "%s %s: %s\n", p.Target, p.ErrorCode, p.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(c.stdout).Encode(rr)
	fmt.Fprintln(c.stderr, summary)
}

func reportForConfigError(now time.Time, err error) domain.RunReport {
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

func writeReportFile(fs afero.Fs, path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(fs, filepath.Dir(path), filepath.Base(path), b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	for _, p := range rr.Publish {
		if p.Status == domain.StatusOK {
			fmt.Fprintf(w, "%s: %s\n", p.Target, p.Location)
		}
	}
	if eff.ReportPath != "" {
		fmt.Fprintf(w, "report: %s\n", eff.ReportPath)
	}
}
