package monitor

import (
	"fmt"
	"strings"
	"time"

	"starwatch/internal/nina"
	"starwatch/internal/notify"
)

// frameColor picks the accent color for an image card by frame type.
func frameColor(imageType string) int {
	switch strings.ToUpper(imageType) {
	case nina.FrameLight:
		return notify.ColorGreen
	case nina.FrameDark:
		return notify.ColorGray
	case nina.FrameFlat:
		return notify.ColorBlue
	case nina.FrameBias:
		return notify.ColorPurple
	default:
		return notify.ColorCyan
	}
}

// StartupCard announces that the monitor is up and what it is watching.
func StartupCard(version, baseURL string, pollInterval time.Duration, channels []string, now time.Time) notify.Message {
	msg := notify.Message{
		Title:     "🚀 Observation Monitor Started",
		Color:     notify.ColorCyan,
		Timestamp: now,
	}
	if version != "" {
		msg.AddField("API Version", version, true)
	}
	msg.AddField("Endpoint", baseURL, true)
	msg.AddField("Poll Interval", pollInterval.String(), true)
	msg.AddField("Channels", strings.Join(channels, ", "), true)
	return msg
}

// TargetCard announces a new or changed observation target. The previous
// name, when known, is shown so operators can see the transition.
func TargetCard(prev *TargetInfo, next TargetInfo, now time.Time) notify.Message {
	title := "🎯 Target Started"
	if prev != nil {
		title = "🎯 Target Changed"
	}
	msg := notify.Message{
		Title:     title,
		Color:     notify.ColorCyan,
		Timestamp: now,
	}
	if prev != nil {
		msg.AddField("Previous", prev.Name, true)
	}
	msg.AddField("Target", next.Name, true)
	if next.ProjectName != "" {
		msg.AddField("Project", next.ProjectName, true)
	}
	if next.Coordinates.RAString != "" {
		msg.AddField("RA", next.Coordinates.RAString, true)
	}
	if next.Coordinates.DecString != "" {
		msg.AddField("Dec", next.Coordinates.DecString, true)
	}
	if next.Rotation != 0 {
		msg.AddField("Rotation", fmt.Sprintf("%.1f°", next.Rotation), true)
	}
	return msg
}

// GenericEventCard renders an event with no special handling: title and
// color from the type tables, plus the raw timestamp and any detail text.
func GenericEventCard(ev nina.Event, now time.Time) notify.Message {
	msg := notify.Message{
		Title:     EventTitle(ev.Type),
		Color:     EventColor(ev.Type),
		Timestamp: now,
	}
	msg.AddField("Time", ev.Time, true)
	if fw, ok := ev.Details.(nina.FilterWheelChange); ok {
		msg.AddField("From", fmt.Sprintf("%s (#%d)", fw.Previous.Name, fw.Previous.ID), true)
		msg.AddField("To", fmt.Sprintf("%s (#%d)", fw.New.Name, fw.New.ID), true)
	}
	return msg
}

// MountEventCard renders the mount lifecycle events that get dedicated
// titles, enriched with live telemetry when available.
func MountEventCard(eventType string, mount *nina.MountInfo, now time.Time) notify.Message {
	var title string
	var color int
	switch eventType {
	case nina.EventMountBeforeFlip:
		title = "🔄 Mount Preparing for Meridian Flip"
		color = notify.ColorOrange
	case nina.EventMountAfterFlip:
		title = "✅ Mount Meridian Flip Completed"
		color = notify.ColorGreen
	case nina.EventMountParked:
		title = "🅿️ Mount Parked"
		color = notify.ColorYellow
	default:
		title = EventTitle(eventType)
		color = EventColor(eventType)
	}
	msg := notify.Message{Title: title, Color: color, Timestamp: now}
	if mount != nil && mount.Connected {
		msg.AddField("RA", mount.RightAscensionString, true)
		msg.AddField("Dec", mount.DeclinationString, true)
		msg.AddField("Alt", mount.AltitudeString, true)
		msg.AddField("Az", mount.AzimuthString, true)
		msg.AddField("Side of Pier", mount.SideOfPier, true)
		if mount.Name != "" {
			msg.Footer = "Mount: " + mount.Name
		}
	}
	return msg
}

// AutofocusCard renders a completed autofocus run with fit quality and
// focuser travel.
func AutofocusCard(report *nina.AutofocusReport, now time.Time) notify.Message {
	color := notify.ColorPurple
	title := "🔍 Autofocus Completed"
	if !report.Successful() {
		color = notify.ColorOrange
		title = "🔍 Autofocus Completed (poor fit)"
	}
	msg := notify.Message{Title: title, Color: color, Timestamp: now}
	d := report.Data
	if d.Filter != "" {
		msg.AddField("Filter", d.Filter, true)
	}
	msg.AddField("Position", fmt.Sprintf("%d", d.CalculatedFocusPoint.Position), true)
	if change := report.PositionChange(); change != 0 {
		msg.AddField("Travel", fmt.Sprintf("%+d", change), true)
	}
	msg.AddField("R²", fmt.Sprintf("%.4f", report.BestRSquared()), true)
	msg.AddField("Temperature", fmt.Sprintf("%.1f°C", d.Temperature), true)
	if d.Method != "" {
		msg.AddField("Method", d.Method, true)
	}
	if d.Duration != "" {
		msg.AddField("Duration", d.Duration, true)
	}
	return msg
}

// ImageCard renders a captured frame. skipped is how many frames the
// cooldown swallowed since the last card. The meridian countdown only
// appears when the flip is at most an hour out; farther flips are noise.
func ImageCard(img nina.ImageMetadata, target *TargetInfo, meridianHours *float64, skipped int, now time.Time) notify.Message {
	title := fmt.Sprintf("📸 New %s Frame Captured", img.ImageType)
	if skipped > 0 {
		title += fmt.Sprintf(" (+%d skipped)", skipped)
	}
	msg := notify.Message{
		Title:     title,
		Color:     frameColor(img.ImageType),
		Timestamp: now,
	}
	if target != nil {
		msg.AddField("Target", target.Name, true)
	}
	if img.Filter != "" {
		msg.AddField("Filter", img.Filter, true)
	}
	msg.AddField("Exposure", fmt.Sprintf("%.1fs", img.ExposureTime), true)
	msg.AddField("Gain", fmt.Sprintf("%d", img.Gain), true)
	if img.Stars > 0 {
		msg.AddField("Stars", fmt.Sprintf("%d", img.Stars), true)
	}
	if img.HFR > 0 {
		msg.AddField("HFR", fmt.Sprintf("%.2f", img.HFR), true)
	}
	msg.AddField("Mean", fmt.Sprintf("%.0f", img.Mean), true)
	msg.AddField("Temperature", fmt.Sprintf("%.1f°C", img.Temperature), true)
	if img.RmsText != "" {
		msg.AddField("Guiding RMS", img.RmsText, true)
	}
	if meridianHours != nil && *meridianHours <= 1.0 {
		msg.AddField("Meridian Flip", nina.FormatFlipCountdownAt(*meridianHours, now), true)
	}
	if img.TelescopeName != "" {
		msg.Footer = "Telescope: " + img.TelescopeName
	}
	return msg
}

// SummaryCard renders the scheduled session summary.
func SummaryCard(stats SessionStats, target *TargetInfo, now time.Time) notify.Message {
	msg := notify.Message{
		Title:     "📋 Session Summary",
		Color:     notify.ColorBlue,
		Timestamp: now,
	}
	msg.AddField("Uptime", now.Sub(stats.StartedAt).Round(time.Minute).String(), true)
	msg.AddField("Events", fmt.Sprintf("%d", stats.EventsSeen), true)
	msg.AddField("Images", fmt.Sprintf("%d (%d notified, %d suppressed)",
		stats.ImagesSeen, stats.ImagesNotified, stats.ImagesSuppressed), true)
	if target != nil {
		msg.AddField("Current Target", target.Name, true)
	}
	if len(stats.Targets) > 0 {
		msg.AddField("Targets Visited", strings.Join(stats.Targets, ", "), false)
	}
	return msg
}
