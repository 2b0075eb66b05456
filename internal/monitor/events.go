package monitor

import (
	"strings"

	"starwatch/internal/nina"
	"starwatch/internal/notify"
)

// eventColors maps event types to card accent colors. Types missing here
// fall back to a substring heuristic in EventColor.
var eventColors = map[string]int{
	nina.EventCameraConnected:       notify.ColorGreen,
	nina.EventCameraDisconnected:    notify.ColorRed,
	nina.EventFilterWheelConnected:  notify.ColorBlue,
	nina.EventFilterWheelDisconnect: notify.ColorRed,
	nina.EventFilterWheelChanged:    notify.ColorBlue,
	nina.EventMountConnected:        notify.ColorGreen,
	nina.EventMountDisconnected:     notify.ColorRed,
	nina.EventMountParked:           notify.ColorYellow,
	nina.EventMountUnparked:         notify.ColorYellow,
	nina.EventMountSlew:             notify.ColorOrange,
	nina.EventMountBeforeFlip:       notify.ColorOrange,
	nina.EventMountAfterFlip:        notify.ColorGreen,
	nina.EventFocuserConnected:      notify.ColorGreen,
	nina.EventFocuserDisconnected:   notify.ColorRed,
	nina.EventFocusStart:            notify.ColorPurple,
	nina.EventFocusEnd:              notify.ColorPurple,
	nina.EventAutofocusFinished:     notify.ColorPurple,
	nina.EventRotatorConnected:      notify.ColorGreen,
	nina.EventRotatorDisconnected:   notify.ColorRed,
	nina.EventRotatorMoved:          notify.ColorCyan,
	nina.EventRotatorSynced:         notify.ColorCyan,
	nina.EventGuiderConnected:       notify.ColorGreen,
	nina.EventGuiderDisconnected:    notify.ColorRed,
	nina.EventGuiderStart:           notify.ColorBlue,
	nina.EventGuiderDither:          notify.ColorCyan,
	nina.EventSequenceStart:         notify.ColorCyan,
	nina.EventSequenceResume:        notify.ColorCyan,
	nina.EventSequenceStop:          notify.ColorOrange,
	nina.EventAdvSeqStop:            notify.ColorOrange,
	nina.EventSequencePause:         notify.ColorYellow,
	nina.EventSequenceFinished:      notify.ColorGreen,
	nina.EventExposureStart:         notify.ColorYellow,
	nina.EventExposureEnd:           notify.ColorGreen,
	nina.EventFlatDisconnected:      notify.ColorRed,
	nina.EventWeatherDisconnected:   notify.ColorRed,
	nina.EventSwitchDisconnected:    notify.ColorRed,
	nina.EventDomeDisconnected:      notify.ColorRed,
	nina.EventSafetyDisconnected:    notify.ColorRed,
	nina.EventTargetStart:           notify.ColorCyan,
}

// EventColor picks the accent color for an event type. Unknown types that
// look like errors or warnings are colored accordingly; the rest are gray.
func EventColor(eventType string) int {
	if c, ok := eventColors[eventType]; ok {
		return c
	}
	switch {
	case strings.Contains(eventType, "ERROR"):
		return notify.ColorRed
	case strings.Contains(eventType, "WARNING"):
		return notify.ColorOrange
	default:
		return notify.ColorGray
	}
}

// eventTitles holds human titles for event types whose raw tag reads
// poorly on a card.
var eventTitles = map[string]string{
	nina.EventCameraConnected:       "📷 Camera Connected",
	nina.EventCameraDisconnected:    "📷 Camera Disconnected",
	nina.EventFilterWheelConnected:  "🎡 Filter Wheel Connected",
	nina.EventFilterWheelDisconnect: "🎡 Filter Wheel Disconnected",
	nina.EventFilterWheelChanged:    "🎨 Filter Changed",
	nina.EventMountConnected:        "🔭 Mount Connected",
	nina.EventMountDisconnected:     "🔭 Mount Disconnected",
	nina.EventMountUnparked:         "🔭 Mount Unparked",
	nina.EventMountSlew:             "🔭 Mount Slewing",
	nina.EventFocuserConnected:      "🔍 Focuser Connected",
	nina.EventFocuserDisconnected:   "🔍 Focuser Disconnected",
	nina.EventFocusStart:            "🔍 Autofocus Started",
	nina.EventFocusEnd:              "🔍 Autofocus Ended",
	nina.EventRotatorConnected:      "🔄 Rotator Connected",
	nina.EventRotatorDisconnected:   "🔄 Rotator Disconnected",
	nina.EventRotatorMoved:          "🔄 Rotator Moved",
	nina.EventRotatorSynced:         "🔄 Rotator Synced",
	nina.EventGuiderConnected:       "🎯 Guider Connected",
	nina.EventGuiderDisconnected:    "🎯 Guider Disconnected",
	nina.EventGuiderStart:           "🎯 Guiding Started",
	nina.EventGuiderDither:          "🎯 Guider Dithering",
	nina.EventSequenceStart:         "▶️ Sequence Started",
	nina.EventSequenceStop:          "⏹️ Sequence Stopped",
	nina.EventSequencePause:         "⏸️ Sequence Paused",
	nina.EventSequenceResume:        "▶️ Sequence Resumed",
	nina.EventSequenceFinished:      "🏁 Sequence Finished",
	nina.EventAdvSeqStop:            "⏹️ Advanced Sequence Stopped",
	nina.EventExposureStart:         "⏱️ Exposure Started",
	nina.EventExposureEnd:           "⏱️ Exposure Ended",
}

// EventTitle renders the card title for a generic event.
func EventTitle(eventType string) string {
	if t, ok := eventTitles[eventType]; ok {
		return t
	}
	return "📡 " + eventType
}
