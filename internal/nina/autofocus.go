package nina

import (
	"encoding/json"
	"math"
	"strconv"
)

// NaNFloat decodes a float64 that the endpoint sometimes serializes as the
// string "NaN".
type NaNFloat float64

func (f *NaNFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "NaN" {
			*f = NaNFloat(math.NaN())
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = NaNFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NaNFloat(v)
	return nil
}

type FocusPoint struct {
	Position int      `json:"Position"`
	Value    NaNFloat `json:"Value"`
	Error    float64  `json:"Error"`
}

type RSquares struct {
	Quadratic  NaNFloat `json:"Quadratic"`
	Hyperbolic NaNFloat `json:"Hyperbolic"`
	LeftTrend  NaNFloat `json:"LeftTrend"`
	RightTrend NaNFloat `json:"RightTrend"`
}

type AutofocusData struct {
	Filter               string       `json:"Filter"`
	AutoFocuserName      string       `json:"AutoFocuserName"`
	StarDetectorName     string       `json:"StarDetectorName"`
	Timestamp            string       `json:"Timestamp"`
	Temperature          float64      `json:"Temperature"`
	Method               string       `json:"Method"`
	Fitting              string       `json:"Fitting"`
	InitialFocusPoint    FocusPoint   `json:"InitialFocusPoint"`
	CalculatedFocusPoint FocusPoint   `json:"CalculatedFocusPoint"`
	PreviousFocusPoint   FocusPoint   `json:"PreviousFocusPoint"`
	MeasurePoints        []FocusPoint `json:"MeasurePoints"`
	RSquares             RSquares     `json:"RSquares"`
	Duration             string       `json:"Duration"`
}

// AutofocusReport is the envelope-level view of the last autofocus run.
type AutofocusReport struct {
	Data       AutofocusData
	Error      string
	StatusCode int
	Success    bool
}

// BestRSquared returns the highest fit quality across all models,
// ignoring NaNs.
func (r *AutofocusReport) BestRSquared() float64 {
	best := 0.0
	for _, v := range []NaNFloat{
		r.Data.RSquares.Quadratic,
		r.Data.RSquares.Hyperbolic,
		r.Data.RSquares.LeftTrend,
		r.Data.RSquares.RightTrend,
	} {
		f := float64(v)
		if !math.IsNaN(f) && f > best {
			best = f
		}
	}
	return best
}

// Successful reports whether the run both completed and produced a
// reasonable fit.
func (r *AutofocusReport) Successful() bool {
	return r.Success && r.BestRSquared() >= 0.8
}

// PositionChange is the focuser travel between the initial and calculated
// focus points.
func (r *AutofocusReport) PositionChange() int {
	return r.Data.CalculatedFocusPoint.Position - r.Data.InitialFocusPoint.Position
}
