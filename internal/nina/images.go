package nina

// Frame type tags.
const (
	FrameLight = "LIGHT"
	FrameDark  = "DARK"
	FrameFlat  = "FLAT"
	FrameBias  = "BIAS"
)

// ImageMetadata is one entry of the image history. (Date, CameraName) is
// the dedup identity; the rest is card material.
type ImageMetadata struct {
	Date          string  `json:"Date"`
	CameraName    string  `json:"CameraName"`
	ImageType     string  `json:"ImageType"`
	Filter        string  `json:"Filter"`
	ExposureTime  float64 `json:"ExposureTime"`
	Temperature   float64 `json:"Temperature"`
	Gain          int     `json:"Gain"`
	Offset        int     `json:"Offset"`
	TelescopeName string  `json:"TelescopeName"`
	FocalLength   int     `json:"FocalLength"`
	Stars         int     `json:"Stars"`
	HFR           float64 `json:"HFR"`
	Mean          float64 `json:"Mean"`
	Median        float64 `json:"Median"`
	StDev         float64 `json:"StDev"`
	RmsText       string  `json:"RmsText"`
	IsBayered     bool    `json:"IsBayered"`
}
