package validate

type Request struct {
	Devices []int64
	Start   int64
	End     int64
}

type Response struct {
	IsValid bool   `json:"is_valid"`
	Type    string `json:"type"`
	Size    int64  `json:"size"`
}
