package model

// MatteResult 抠图结果
type MatteResult struct {
	Key        string  `json:"key"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Matte      string  `json:"matte"`       // base64编码的PNG，alpha通道为蒙版
	MaskSource string  `json:"mask_source"` // upload, grabcut
	BBox       BBox    `json:"bounding_box"`
	Confidence float64 `json:"confidence"`
	Levels     int     `json:"levels"`
	Passes     int     `json:"passes"`
	DurationMS int64   `json:"duration_ms"`
	Timestamp  int64   `json:"timestamp"`
}

// BBox 边界框
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MatteRequest 一次抠图请求的原始数据
type MatteRequest struct {
	Key   string
	Image []byte
	Mask  []byte // 为空时自动生成粗略掩码
}

// UploadResponse 上传响应
type UploadResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *MatteResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
