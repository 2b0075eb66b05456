package nina

import (
	"encoding/json"
	"fmt"
)

// Event type tags emitted by the imaging control endpoint.
const (
	EventCameraConnected        = "CAMERA-CONNECTED"
	EventCameraDisconnected     = "CAMERA-DISCONNECTED"
	EventFilterWheelConnected   = "FILTERWHEEL-CONNECTED"
	EventFilterWheelDisconnect  = "FILTERWHEEL-DISCONNECTED"
	EventFilterWheelChanged     = "FILTERWHEEL-CHANGED"
	EventMountConnected         = "MOUNT-CONNECTED"
	EventMountDisconnected      = "MOUNT-DISCONNECTED"
	EventMountBeforeFlip        = "MOUNT-BEFORE-FLIP"
	EventMountAfterFlip         = "MOUNT-AFTER-FLIP"
	EventMountParked            = "MOUNT-PARKED"
	EventMountUnparked          = "MOUNT-UNPARKED"
	EventMountSlew              = "MOUNT-SLEW"
	EventFocuserConnected       = "FOCUSER-CONNECTED"
	EventFocuserDisconnected    = "FOCUSER-DISCONNECTED"
	EventFocusStart             = "FOCUS-START"
	EventFocusEnd               = "FOCUS-END"
	EventAutofocusFinished      = "AUTOFOCUS-FINISHED"
	EventRotatorConnected       = "ROTATOR-CONNECTED"
	EventRotatorDisconnected    = "ROTATOR-DISCONNECTED"
	EventRotatorMoved           = "ROTATOR-MOVED"
	EventRotatorSynced          = "ROTATOR-SYNCED"
	EventGuiderConnected        = "GUIDER-CONNECTED"
	EventGuiderDisconnected     = "GUIDER-DISCONNECTED"
	EventGuiderStart            = "GUIDER-START"
	EventGuiderDither           = "GUIDER-DITHER"
	EventSequenceStart          = "SEQUENCE-START"
	EventSequenceStop           = "SEQUENCE-STOP"
	EventSequencePause          = "SEQUENCE-PAUSE"
	EventSequenceResume         = "SEQUENCE-RESUME"
	EventSequenceFinished       = "SEQUENCE-FINISHED"
	EventAdvSeqStop             = "ADV-SEQ-STOP"
	EventExposureStart          = "EXPOSURE-START"
	EventExposureEnd            = "EXPOSURE-END"
	EventFlatDisconnected       = "FLAT-DISCONNECTED"
	EventWeatherDisconnected    = "WEATHER-DISCONNECTED"
	EventSwitchDisconnected     = "SWITCH-DISCONNECTED"
	EventDomeDisconnected       = "DOME-DISCONNECTED"
	EventSafetyDisconnected     = "SAFETY-DISCONNECTED"
	EventImageSave              = "IMAGE-SAVE"
	EventTargetStart            = "TS-TARGETSTART"
)

// Event is one entry of the event history. Details is nil for event types
// that carry no structured payload (or ones we do not model).
type Event struct {
	Time    string
	Type    string
	Details EventDetails
}

// EventDetails is the tagged union of known structured event payloads.
// String() must be stable: it participates in dedup fingerprints.
type EventDetails interface {
	fmt.Stringer
	isEventDetails()
}

type FilterInfo struct {
	Name string `json:"Name"`
	ID   int    `json:"Id"`
}

// FilterWheelChange is attached to FILTERWHEEL-CHANGED events.
type FilterWheelChange struct {
	Previous FilterInfo `json:"Previous"`
	New      FilterInfo `json:"New"`
}

func (FilterWheelChange) isEventDetails() {}

func (d FilterWheelChange) String() string {
	return fmt.Sprintf("filterwheel{%s(%d)->%s(%d)}", d.Previous.Name, d.Previous.ID, d.New.Name, d.New.ID)
}

// NoOp reports whether the change did not actually switch filters.
func (d FilterWheelChange) NoOp() bool { return d.Previous.Name == d.New.Name }

// TargetCoordinates is the subset of coordinate data carried by
// TS-TARGETSTART events that we render on cards.
type TargetCoordinates struct {
	RA        float64 `json:"RA"`
	RAString  string  `json:"RAString"`
	Dec       float64 `json:"Dec"`
	DecString string  `json:"DecString"`
}

// TargetStartDetails is attached to TS-TARGETSTART events.
type TargetStartDetails struct {
	TargetName  string            `json:"TargetName"`
	ProjectName string            `json:"ProjectName"`
	Coordinates TargetCoordinates `json:"Coordinates"`
	Rotation    float64           `json:"Rotation"`
}

func (TargetStartDetails) isEventDetails() {}

func (d TargetStartDetails) String() string {
	return fmt.Sprintf("targetstart{%s project=%s ra=%s dec=%s rot=%g}",
		d.TargetName, d.ProjectName, d.Coordinates.RAString, d.Coordinates.DecString, d.Rotation)
}

// UnmarshalJSON decodes the wire shape where detail fields are flattened
// into the event object itself. The variant is detected by its fields;
// events with no recognized detail fields get a nil Details.
func (e *Event) UnmarshalJSON(data []byte) error {
	var head struct {
		Time  string `json:"Time"`
		Event string `json:"Event"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	e.Time = head.Time
	e.Type = head.Event
	e.Details = nil

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe["New"] != nil && probe["Previous"] != nil:
		var d FilterWheelChange
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		e.Details = d
	case probe["TargetName"] != nil:
		var d TargetStartDetails
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		e.Details = d
	}
	return nil
}
