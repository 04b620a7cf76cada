package domain

// IconRecord 是图标库中的一条记录。Name 在库内唯一（由 publish 包的冲突规则保证）。
type IconRecord struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	UploadTime string `json:"upload_time"`
}
