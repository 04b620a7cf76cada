package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind 是条目的媒体类型。目录接口里还会出现 "person"，但它不属于本领域，由 normalizer 直接丢弃。
type Kind string

const (
	KindMovie  Kind = "movie"
	KindTV     Kind = "tv"
	KindPerson Kind = "person"
	// KindAll 只用于请求混合类型的趋势流（/trending/all/...），不会出现在 MediaItem 上。
	KindAll Kind = "all"
)

// ParseKind 把目录返回的 media_type 规范化；无法识别时 ok=false。
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMovie:
		return KindMovie, true
	case KindTV:
		return KindTV, true
	case KindPerson:
		return KindPerson, true
	case KindAll:
		return KindAll, true
	default:
		return "", false
	}
}

// DateLayout 是目录接口与输出文档共用的日期格式。
const DateLayout = "2006-01-02"

// Date 是可缺省的日期：零值表示“缺失”，JSON 输出为 null。
type Date struct {
	t time.Time
}

// ParseDate 解析 YYYY-MM-DD；空串或非法格式都视为缺失（ok=false），不报错。
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, false
	}
	return Date{t: t}, true
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*d = Date{}
		return nil
	}
	parsed, _ := ParseDate(*s)
	*d = parsed
	return nil
}

// MediaItem 是发布文档中的一条规范化条目。
//
// 不变量：只有当 Rating≠0、ReleaseDate、Overview、PosterURL 至少一项非空时才会进入文档
// （由 normalize 包负责过滤）。构造后不再修改。
type MediaItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Kind        Kind    `json:"type"`
	GenreLabel  string  `json:"genreTitle"`
	Rating      float64 `json:"rating"`
	ReleaseDate Date    `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterURL   string  `json:"poster_url"`
	BackdropURL string  `json:"title_backdrop"`
	LogoURL     string  `json:"logo_url"`
}

// IsNearEmpty 判断条目是否是“占位级”的空数据。
func (m MediaItem) IsNearEmpty() bool {
	return m.Rating == 0 && m.ReleaseDate.IsZero() && strings.TrimSpace(m.Overview) == "" && strings.TrimSpace(m.PosterURL) == ""
}
