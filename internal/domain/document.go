package domain

import (
	"fmt"
	"time"
)

// TimestampLayout 是 last_updated 的输出格式（固定时区偏移，不带时区后缀）。
const TimestampLayout = "2006-01-02 15:04:05"

// DocumentVersion 标记文档结构版本；字段变更时递增。
const DocumentVersion = "2.1"

// TrendingDocument 是每次运行重新构建、整体替换远端旧版本的发布产物。
// 三个序列保持目录返回的排名顺序，禁止重排。
type TrendingDocument struct {
	LastUpdated   string      `json:"last_updated"`
	TodayGlobal   []MediaItem `json:"today_global"`
	WeekGlobalAll []MediaItem `json:"week_global_all"`
	PopularMovies []MediaItem `json:"popular_movies"`
	Metadata      DocMetadata `json:"metadata"`
}

type DocMetadata struct {
	Version          string       `json:"version"`
	Features         []string     `json:"features"`
	TotalItems       int          `json:"total_items"`
	LogosCount       int          `json:"logos_count"`
	BackdropsCount   int          `json:"backdrops_count"`
	APIKeyConfigured bool         `json:"api_key_configured"`
	LogoCoverage     LogoCoverage `json:"logo_coverage"`
}

type LogoCoverage struct {
	Total   string `json:"total"`
	Movies  string `json:"movies"`
	TVShows string `json:"tv_shows"`
}

var documentFeatures = []string{"logo_background", "enhanced_posters", "title_backdrops", "tv_logo_optimization"}

// NewTrendingDocument 组装文档并计算 metadata。nil 序列会被替换为空切片，保证 JSON 输出 [] 而不是 null。
func NewTrendingDocument(now time.Time, offsetHours int, apiKeyConfigured bool, today, week, popular []MediaItem) TrendingDocument {
	doc := TrendingDocument{
		LastUpdated:   FormatTimestamp(now, offsetHours),
		TodayGlobal:   nonNil(today),
		WeekGlobalAll: nonNil(week),
		PopularMovies: nonNil(popular),
	}
	doc.Metadata = doc.computeMetadata(apiKeyConfigured)
	return doc
}

// FormatTimestamp 把时间转换到 UTC+offsetHours 并按 TimestampLayout 格式化。
func FormatTimestamp(t time.Time, offsetHours int) string {
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
	return t.In(zone).Format(TimestampLayout)
}

// Items 按固定顺序（today, week, popular）返回所有条目。
func (d TrendingDocument) Items() []MediaItem {
	out := make([]MediaItem, 0, len(d.TodayGlobal)+len(d.WeekGlobalAll)+len(d.PopularMovies))
	out = append(out, d.TodayGlobal...)
	out = append(out, d.WeekGlobalAll...)
	out = append(out, d.PopularMovies...)
	return out
}

func (d TrendingDocument) computeMetadata(apiKeyConfigured bool) DocMetadata {
	var logos, backdrops, movies, tv, movieLogos, tvLogos int
	items := d.Items()
	for _, it := range items {
		hasLogo := it.LogoURL != ""
		if hasLogo {
			logos++
		}
		if it.BackdropURL != "" {
			backdrops++
		}
		switch it.Kind {
		case KindMovie:
			movies++
			if hasLogo {
				movieLogos++
			}
		case KindTV:
			tv++
			if hasLogo {
				tvLogos++
			}
		}
	}
	return DocMetadata{
		Version:          DocumentVersion,
		Features:         append([]string(nil), documentFeatures...),
		TotalItems:       len(items),
		LogosCount:       logos,
		BackdropsCount:   backdrops,
		APIKeyConfigured: apiKeyConfigured,
		LogoCoverage: LogoCoverage{
			Total:   fmt.Sprintf("%d/%d", logos, len(items)),
			Movies:  fmt.Sprintf("%d/%d", movieLogos, movies),
			TVShows: fmt.Sprintf("%d/%d", tvLogos, tv),
		},
	}
}

func nonNil(in []MediaItem) []MediaItem {
	if in == nil {
		return []MediaItem{}
	}
	return in
}
