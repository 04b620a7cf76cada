package logx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 控制日志输出。File 为空时只写 stderr。
type Options struct {
	Level string
	File  string

	// Stderr 仅供测试替换；nil 表示 os.Stderr。
	Stderr io.Writer
}

// New 构造 slog.Logger，并返回需要在退出前调用的 close。
//
// 约束：日志永远不写 stdout（stdout 只承载 RunReport JSON）。
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	if opts.Stderr != nil {
		w = opts.Stderr
	}
	closeFn := func() error { return nil }

	if f := strings.TrimSpace(opts.File); f != "" {
		rot := &lumberjack.Logger{
			Filename:   f,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		w = io.MultiWriter(w, rot)
		closeFn = rot.Close
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), closeFn, nil
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("未知日志级别：%q", s)
	}
}
