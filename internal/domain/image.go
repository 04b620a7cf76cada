package domain

// ImageRole 是图片在条目上的用途。
type ImageRole string

const (
	RolePoster   ImageRole = "poster"
	RoleBackdrop ImageRole = "backdrop"
	RoleLogo     ImageRole = "logo"
)

// ImageCandidate 是目录为某个条目、某个用途返回的一张候选图片。
// Locale 为空表示未标注语言（目录里的 null）。
type ImageCandidate struct {
	Path         string
	Locale       string
	QualityScore float64
	Width        int
	Height       int
}

// Area 返回像素面积；负尺寸按 0 处理。
func (c ImageCandidate) Area() int {
	if c.Width <= 0 || c.Height <= 0 {
		return 0
	}
	return c.Width * c.Height
}
