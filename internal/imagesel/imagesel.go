// Package imagesel 从候选图片中选出唯一最佳图片。纯函数，无 I/O。
package imagesel

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/John-Robertt/trendsync/internal/domain"
)

// BaseURL 是图片 CDN 前缀；完整地址为 BaseURL + size + path。
const BaseURL = "https://image.tmdb.org/t/p/"

// DefaultSize 是默认尺寸段。
const DefaultSize = "original"

// 语言档位：越小越优先。
const (
	localePrimary = iota
	localeFallback
	localeUnset
	localeOther
)

// Options 描述一次选择的偏好。
type Options struct {
	Primary  string
	Fallback string
	Size     string

	// Kind 与 TransparentTVLogos 一起决定是否启用“透明剧集 logo”加分。
	Kind               domain.Kind
	TransparentTVLogos bool
}

// Rank 是候选图片的排序键，按字段顺序逐项比较，小者优先。
type Rank struct {
	Locale       int
	Transparency int
	Quality      float64
	Area         int
}

// Less 按字典序比较两个 Rank。
func (r Rank) Less(o Rank) bool {
	if r.Locale != o.Locale {
		return r.Locale < o.Locale
	}
	if r.Transparency != o.Transparency {
		return r.Transparency < o.Transparency
	}
	if r.Quality != o.Quality {
		return r.Quality < o.Quality
	}
	return r.Area < o.Area
}

// RankOf 计算单个候选的排序键。
func RankOf(c domain.ImageCandidate, role domain.ImageRole, opts Options) Rank {
	return Rank{
		Locale:       localeTier(c.Locale, opts),
		Transparency: transparency(c, role, opts),
		Quality:      -c.QualityScore,
		Area:         -c.Area(),
	}
}

// SelectBest 返回最佳候选的完整 URL；没有候选时 ok=false。
//
// 规则：
// - 语言档位：主语言 < 回退语言 < 未标注 < 其他
// - 同档位内：评分高者优先，再比像素面积
// - 完全相同的排序键保留先出现者
func SelectBest(cands []domain.ImageCandidate, role domain.ImageRole, opts Options) (string, bool) {
	best := -1
	var bestRank Rank
	for i, c := range cands {
		if strings.TrimSpace(c.Path) == "" {
			continue
		}
		r := RankOf(c, role, opts)
		if best < 0 || r.Less(bestRank) {
			best, bestRank = i, r
		}
	}
	if best < 0 {
		return "", false
	}
	return ImageURL(cands[best].Path, opts.Size), true
}

// ImageURL 拼接图片地址；path 为空时返回空串。
func ImageURL(path, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	size = strings.Trim(strings.TrimSpace(size), "/")
	if size == "" {
		size = DefaultSize
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return BaseURL + size + path
}

// LocaleOf 把配置里的语言标签（如 zh-CN）规约为图片使用的 ISO 639-1 语言码（zh）。
// 无法解析时回退为小写的前缀段。
func LocaleOf(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(tag)
	if err != nil {
		base, _, _ := strings.Cut(strings.ReplaceAll(tag, "_", "-"), "-")
		return strings.ToLower(base)
	}
	base, _ := t.Base()
	return base.String()
}

func localeTier(locale string, opts Options) int {
	l := strings.ToLower(strings.TrimSpace(locale))
	switch {
	case l == "":
		return localeUnset
	case l == strings.ToLower(opts.Primary):
		return localePrimary
	case l == strings.ToLower(opts.Fallback):
		return localeFallback
	default:
		return localeOther
	}
}

func transparency(c domain.ImageCandidate, role domain.ImageRole, opts Options) int {
	if !opts.TransparentTVLogos || role != domain.RoleLogo || opts.Kind != domain.KindTV {
		return 0
	}
	p := strings.ToLower(c.Path)
	if strings.Contains(p, "png") || strings.Contains(p, "transparent") {
		return -1
	}
	return 0
}
