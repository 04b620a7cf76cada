// Package localfile 把文档写到本地目录（同目录临时文件 + rename）。
package localfile

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/trendsync/internal/infra/fsx"
)

// Name 是本地文件目标在注册表中的名字。
const Name = "file"

// Store 在 Dir 下读写文档。description 对本地文件无意义，被忽略。
type Store struct {
	fs  afero.Fs
	dir string
}

func New(fs afero.Fs, dir string) (*Store, error) {
	if fs == nil {
		return nil, errors.New("localfile: nil fs")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return &Store{fs: fs, dir: filepath.Clean(dir)}, nil
}

func (s *Store) Name() string { return Name }

func (s *Store) Location(file string) string { return filepath.Join(s.dir, file) }

func (s *Store) Read(ctx context.Context, file string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return fsx.ReadFile(s.fs, s.Location(file))
}

func (s *Store) Write(ctx context.Context, file string, content []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(file, `/\`) {
		return errors.New("localfile: 文件名不能包含路径分隔符")
	}
	return fsx.WriteFileAtomic(s.fs, s.dir, file, content)
}
