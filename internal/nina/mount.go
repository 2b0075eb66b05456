package nina

// MountInfo is the subset of the mount telemetry payload that cards use.
// The real payload carries far more; unknown fields are ignored.
type MountInfo struct {
	Connected              bool    `json:"Connected"`
	Name                   string  `json:"Name"`
	RightAscensionString   string  `json:"RightAscensionString"`
	DeclinationString      string  `json:"DeclinationString"`
	AltitudeString         string  `json:"AltitudeString"`
	AzimuthString          string  `json:"AzimuthString"`
	SideOfPier             string  `json:"SideOfPier"`
	AtPark                 bool    `json:"AtPark"`
	TrackingEnabled        bool    `json:"TrackingEnabled"`
	Slewing                bool    `json:"Slewing"`
	TimeToMeridianFlip     float64 `json:"TimeToMeridianFlip"`
	TimeToMeridianFlipText string  `json:"TimeToMeridianFlipString"`
}
