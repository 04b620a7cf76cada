package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

type failRenameFs struct {
	afero.Fs
}

func (f failRenameFs) Rename(oldname, newname string) error { return os.ErrPermission }

func TestWriteFileAtomic_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()

	if err := WriteFileAtomic(fs, dir, "a.json", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_ReplaceExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := WriteFileAtomic(fs, "/data", "a.json", []byte("v1")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := WriteFileAtomic(fs, "/data", "a.json", []byte("v2")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, ok, err := ReadFile(fs, "/data/a.json")
	if err != nil || !ok || string(b) != "v2" {
		t.Fatalf("期望覆盖为 v2，实际 ok=%v b=%q err=%v", ok, string(b), err)
	}
}

func TestWriteFileAtomic_RenameFail_KeepsOldAndCleansTemp(t *testing.T) {
	mem := afero.NewMemMapFs()
	if err := afero.WriteFile(mem, "/data/a.json", []byte("old"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	err := WriteFileAtomic(failRenameFs{mem}, "/data", "a.json", []byte("new"))
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	b, _, _ := ReadFile(mem, "/data/a.json")
	if string(b) != "old" {
		t.Fatalf("失败后旧内容应保持不变，实际 %q", string(b))
	}
	entries, err := afero.ReadDir(mem, "/data")
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomic_TargetConflictDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/data/a.json", 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}

	err := WriteFileAtomic(fs, "/data", "a.json", []byte("hello"))
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}

func TestReadFile_Missing(t *testing.T) {
	b, ok, err := ReadFile(afero.NewMemMapFs(), "/nope.json")
	if err != nil || ok || b != nil {
		t.Fatalf("缺失文件应返回 (nil,false,nil)，实际 (%q,%v,%v)", string(b), ok, err)
	}
}
