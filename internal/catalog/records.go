package catalog

import (
	"strings"

	"github.com/John-Robertt/trendsync/internal/domain"
)

// RawItem 是趋势/热门列表里的一条原始记录。字段缺失时为零值。
type RawItem struct {
	ID           int     `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   string  `json:"poster_path"`
}

// DisplayTitle 返回 title，缺失时回退到 name（剧集只有 name）。
func (r RawItem) DisplayTitle() string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return strings.TrimSpace(r.Name)
}

type listPage struct {
	Results []RawItem `json:"results"`
}

// Genre 是详情里的一个类型标签。
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Detail 只保留规范化需要的详情字段。
type Detail struct {
	Genres []Genre `json:"genres"`
}

// GenreNames 按目录顺序返回非空类型名，最多 limit 个（limit<=0 表示不限）。
func (d Detail) GenreNames(limit int) []string {
	out := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			continue
		}
		out = append(out, name)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ImageEntry 是 images 接口里的一张图。Lang 为 nil 表示未标注语言。
type ImageEntry struct {
	FilePath    string  `json:"file_path"`
	Lang        *string `json:"iso_639_1"`
	VoteAverage float64 `json:"vote_average"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// ImageSet 是一个条目的全部候选图片，按用途分组。
type ImageSet struct {
	Posters   []ImageEntry `json:"posters"`
	Backdrops []ImageEntry `json:"backdrops"`
	Logos     []ImageEntry `json:"logos"`
}

// Candidates 把指定用途的图片转换为 domain.ImageCandidate，保持目录返回顺序；
// 没有 file_path 的条目被跳过。
func (s ImageSet) Candidates(role domain.ImageRole) []domain.ImageCandidate {
	var src []ImageEntry
	switch role {
	case domain.RolePoster:
		src = s.Posters
	case domain.RoleBackdrop:
		src = s.Backdrops
	case domain.RoleLogo:
		src = s.Logos
	}
	out := make([]domain.ImageCandidate, 0, len(src))
	for _, e := range src {
		p := strings.TrimSpace(e.FilePath)
		if p == "" {
			continue
		}
		locale := ""
		if e.Lang != nil {
			locale = strings.ToLower(strings.TrimSpace(*e.Lang))
		}
		out = append(out, domain.ImageCandidate{
			Path:         p,
			Locale:       locale,
			QualityScore: e.VoteAverage,
			Width:        e.Width,
			Height:       e.Height,
		})
	}
	return out
}
