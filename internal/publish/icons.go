package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/trendsync/internal/domain"
	"github.com/John-Robertt/trendsync/internal/store"
)

const (
	libraryName        = "Icon Library"
	libraryDescription = "图标库 - 自助上传系统"
)

// AppendResult 描述一次追加的最终结果。
type AppendResult struct {
	Record    domain.IconRecord
	IsRenamed bool
}

// Icons 维护存储在单个文件中的图标库（读-改-写）。
//
// 约束：
// - 库文件不存在时视为新库
// - 读取失败按原因区分：存储不可达为 unreachable，返回内容无法解析为 malformed
// - 库文件里未知的顶层字段与图标记录里的未知字段原样保留
// - 读取或解析失败时不写入任何内容
// - 不是并发安全的：两个进程同时追加可能丢失其中一次写入
type Icons struct {
	store store.DocumentStore
	file  string
	now   func() time.Time
	zone  *time.Location
}

// NewIcons 创建图标库。offsetHours 决定 upload_time 与写入描述中的时区。
func NewIcons(s store.DocumentStore, file string, offsetHours int, now func() time.Time) (*Icons, error) {
	if s == nil {
		return nil, errors.New("publish: nil store")
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, errors.New("publish: 图标库文件名不能为空")
	}
	if now == nil {
		now = time.Now
	}
	return &Icons{
		store: s,
		file:  file,
		now:   now,
		zone:  time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600),
	}, nil
}

// Location 返回图标库文件的位置。
func (ic *Icons) Location() string { return ic.store.Location(ic.file) }

// Append 追加一个图标；同名时改名为 name_N（N 取最小的未占用正整数）。
func (ic *Icons) Append(ctx context.Context, name, url string) (AppendResult, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return AppendResult{}, &Error{Target: ic.store.Name(), Reason: ReasonInvalid, Err: errors.New("name 与 url 不能为空")}
	}

	mu := ic.lock()
	mu.Lock()
	defer mu.Unlock()

	lib, err := ic.load(ctx, true)
	if err != nil {
		return AppendResult{}, err
	}

	used := make(map[string]struct{}, len(lib.icons))
	for _, e := range lib.icons {
		used[e.Name] = struct{}{}
	}
	final := uniqueName(name, used)

	now := ic.now().In(ic.zone)
	rec := domain.IconRecord{Name: final, URL: url, UploadTime: now.Format(time.RFC3339)}
	raw, err := json.Marshal(rec)
	if err != nil {
		return AppendResult{}, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: err}
	}
	lib.icons = append(lib.icons, iconEntry{Name: final, raw: raw})

	if err := ic.save(ctx, lib, now); err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Record: rec, IsRenamed: final != name}, nil
}

// List 返回库内全部图标（按库内顺序）。库文件不存在时返回空列表。
func (ic *Icons) List(ctx context.Context) ([]domain.IconRecord, error) {
	lib, err := ic.load(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]domain.IconRecord, 0, len(lib.icons))
	for _, e := range lib.icons {
		var rec domain.IconRecord
		if err := json.Unmarshal(e.raw, &rec); err != nil {
			return nil, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Remove 删除名为 name 的图标；名字或库文件不存在时返回 ErrIconNotFound。
func (ic *Icons) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	mu := ic.lock()
	mu.Lock()
	defer mu.Unlock()

	lib, err := ic.load(ctx, false)
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range lib.icons {
		if e.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrIconNotFound
	}
	lib.icons = append(lib.icons[:idx], lib.icons[idx+1:]...)
	return ic.save(ctx, lib, ic.now().In(ic.zone))
}

type iconEntry struct {
	Name string
	raw  json.RawMessage
}

type library struct {
	top   map[string]json.RawMessage
	icons []iconEntry
}

// load 读取并解析库文件。allowMissing=false 时库文件不存在返回 ErrIconNotFound。
func (ic *Icons) load(ctx context.Context, allowMissing bool) (library, error) {
	b, found, err := ic.store.Read(ctx, ic.file)
	if err != nil {
		reason := ReasonUnreachable
		if errors.Is(err, store.ErrMalformed) {
			reason = ReasonMalformed
		}
		return library{}, &Error{Target: ic.store.Name(), Reason: reason, Err: err}
	}
	if !found {
		if !allowMissing {
			return library{}, ErrIconNotFound
		}
		return freshLibrary(), nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return library{}, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: err}
	}
	if top == nil {
		return library{}, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: errors.New("图标库不是 JSON 对象")}
	}

	lib := library{top: top}
	rawIcons, ok := top["icons"]
	if !ok || string(rawIcons) == "null" {
		return lib, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawIcons, &entries); err != nil {
		return library{}, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: fmt.Errorf("icons 字段：%w", err)}
	}
	for _, raw := range entries {
		var head struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return library{}, &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: fmt.Errorf("icons 条目：%w", err)}
		}
		lib.icons = append(lib.icons, iconEntry{Name: head.Name, raw: raw})
	}
	return lib, nil
}

func (ic *Icons) save(ctx context.Context, lib library, now time.Time) error {
	entries := make([]json.RawMessage, 0, len(lib.icons))
	for _, e := range lib.icons {
		entries = append(entries, e.raw)
	}
	rawIcons, err := json.Marshal(entries)
	if err != nil {
		return &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: err}
	}
	lib.top["icons"] = rawIcons

	content, err := Encode(lib.top)
	if err != nil {
		return &Error{Target: ic.store.Name(), Reason: ReasonMalformed, Err: err}
	}
	desc := "图标库更新 - " + now.Format(domain.TimestampLayout)
	if err := ic.store.Write(ctx, ic.file, content, desc); err != nil {
		return &Error{Target: ic.store.Name(), Reason: ReasonWriteFailed, Err: err}
	}
	return nil
}

// lockedTargets 防止同一进程内对同一库文件的读-改-写交错；跨进程的并发写入不受保护。
var lockedTargets sync.Map

func (ic *Icons) lock() *sync.Mutex {
	v, _ := lockedTargets.LoadOrStore(ic.store.Location(ic.file), &sync.Mutex{})
	return v.(*sync.Mutex)
}

func freshLibrary() library {
	name, _ := json.Marshal(libraryName)
	desc, _ := json.Marshal(libraryDescription)
	return library{top: map[string]json.RawMessage{
		"name":        name,
		"description": desc,
	}}
}

// uniqueName 在 used 中为 name 分配不冲突的名字：name, name_1, name_2, ...
func uniqueName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}
	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s_%d", name, n)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
