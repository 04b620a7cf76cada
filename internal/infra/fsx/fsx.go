package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileAtomic 在 dir 下原子写入 name（同目录临时文件 + rename），已存在则覆盖。
//
// 约束：
// - 临时文件必须与目标文件在同目录，以保证 rename 的原子性
// - 任一步失败都会清理临时文件，旧文件保持不变
// - 目标是目录时返回 PathTypeConflictError，不尝试覆盖
func WriteFileAtomic(fs afero.Fs, dir, name string, data []byte) error {
	if fs == nil {
		return errors.New("nil fs")
	}
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)

	if fi, err := fs.Stat(dst); err == nil && fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	// 临时文件前缀带 '.'，避免被当作产物读取。
	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		_ = tmp.Close()
		if !renamed {
			_ = fs.Remove(tmpName)
		}
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := fs.Rename(tmpName, dst); err != nil {
		return err
	}
	renamed = true
	return nil
}

// ReadFile 读取文件；不存在时返回 exists=false 且不报错。
func ReadFile(fs afero.Fs, path string) (b []byte, exists bool, err error) {
	b, err = afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
