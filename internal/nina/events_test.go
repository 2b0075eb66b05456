package nina

import (
	"encoding/json"
	"testing"
)

func TestEventUnmarshalVariants(t *testing.T) {
	t.Parallel()

	t.Run("plain event", func(t *testing.T) {
		raw := `{"Time":"2026-08-20T01:02:03","Event":"CAMERA-CONNECTED"}`
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Type != EventCameraConnected {
			t.Fatalf("Type = %q", ev.Type)
		}
		if ev.Details != nil {
			t.Fatalf("Details = %v, want nil", ev.Details)
		}
	})

	t.Run("filter wheel change", func(t *testing.T) {
		raw := `{"Time":"2026-08-20T01:02:03","Event":"FILTERWHEEL-CHANGED",
			"Previous":{"Name":"L","Id":1},"New":{"Name":"Ha","Id":4}}`
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		d, ok := ev.Details.(FilterWheelChange)
		if !ok {
			t.Fatalf("Details = %T, want FilterWheelChange", ev.Details)
		}
		if d.Previous.Name != "L" || d.New.Name != "Ha" || d.New.ID != 4 {
			t.Fatalf("unexpected details: %+v", d)
		}
		if d.NoOp() {
			t.Fatal("L -> Ha is not a no-op")
		}
	})

	t.Run("no-op filter wheel change", func(t *testing.T) {
		raw := `{"Time":"x","Event":"FILTERWHEEL-CHANGED",
			"Previous":{"Name":"Ha","Id":4},"New":{"Name":"Ha","Id":4}}`
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !ev.Details.(FilterWheelChange).NoOp() {
			t.Fatal("expected no-op")
		}
	})

	t.Run("target start", func(t *testing.T) {
		raw := `{"Time":"2026-08-20T02:00:00","Event":"TS-TARGETSTART",
			"TargetName":"M 31","ProjectName":"Andromeda",
			"Coordinates":{"RA":0.712,"RAString":"00:42:44","Dec":41.27,"DecString":"41:16:09"},
			"Rotation":90.0}`
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		d, ok := ev.Details.(TargetStartDetails)
		if !ok {
			t.Fatalf("Details = %T, want TargetStartDetails", ev.Details)
		}
		if d.TargetName != "M 31" || d.Coordinates.RAString != "00:42:44" {
			t.Fatalf("unexpected details: %+v", d)
		}
	})
}

func TestEventDetailsStringStable(t *testing.T) {
	t.Parallel()
	a := FilterWheelChange{Previous: FilterInfo{Name: "L", ID: 1}, New: FilterInfo{Name: "R", ID: 2}}
	b := FilterWheelChange{Previous: FilterInfo{Name: "L", ID: 1}, New: FilterInfo{Name: "R", ID: 2}}
	if a.String() != b.String() {
		t.Fatal("String() must be deterministic: it feeds dedup keys")
	}
}

func TestNaNFloat(t *testing.T) {
	t.Parallel()
	var r RSquares
	raw := `{"Quadratic":"NaN","Hyperbolic":0.97,"LeftTrend":"0.5","RightTrend":0}`
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	report := AutofocusReport{Data: AutofocusData{RSquares: r}, Success: true}
	if got := report.BestRSquared(); got != 0.97 {
		t.Fatalf("BestRSquared = %v, want 0.97", got)
	}
	if !report.Successful() {
		t.Fatal("expected successful run at 0.97")
	}
	report.Data.RSquares = RSquares{}
	if report.Successful() {
		t.Fatal("zero fit quality must not count as successful")
	}
}
