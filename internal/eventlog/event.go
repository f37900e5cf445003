// Package eventlog stores per-category append-only logs of timestamped
// events on top of a two-column table backend (DataHora, Status).
package eventlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	// TimestampLayout is how DataHora cells are written.
	TimestampLayout = "2006-01-02 15:04:05"

	ColumnTimestamp = "DataHora"
	ColumnStatus    = "Status"
)

// Layouts accepted when reading DataHora cells. Older sheets were written
// by tools that emitted ISO separators or fractional seconds.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.RFC3339,
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

type Label string

const (
	LabelRegular   Label = "Regular"
	LabelEmergency Label = "Emergency"
	LabelUse       Label = "Use"
)

var legacyLabels = map[string]Label{
	"regular":    LabelRegular,
	"emergency":  LabelEmergency,
	"emergência": LabelEmergency,
	"emergencia": LabelEmergency,
	"use":        LabelUse,
	"uso":        LabelUse,
}

// ParseLabel maps a stored Status cell onto a Label. Unknown values are
// kept verbatim.
func ParseLabel(raw string) Label {
	trimmed := strings.TrimSpace(raw)
	if label, ok := legacyLabels[strings.ToLower(trimmed)]; ok {
		return label
	}
	return Label(trimmed)
}

type Event struct {
	Time  time.Time `json:"time"`
	Label Label     `json:"label"`
}

// Row is a raw stored row. Rows that fail to parse are carried through
// rewrites untouched.
type Row struct {
	DataHora string
	Status   string
}

func NewEvent(at time.Time, label Label) Event {
	return Event{Time: at.Truncate(time.Second), Label: label}
}

func (e Event) Row() Row {
	return Row{DataHora: FormatTimestamp(e.Time), Status: string(e.Label)}
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a DataHora cell in loc. Values carrying their own
// offset keep it. Spreadsheet serial dates are read as wall-clock time.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if text, ok := serialTimestamp(value); ok {
		return time.ParseInLocation(TimestampLayout, text, loc)
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// serialTimestamp renders a spreadsheet serial date (days since
// 1899-12-30, 1900 date system) in TimestampLayout.
func serialTimestamp(raw string) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial < 1 {
		return "", false
	}
	at, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return at.Round(time.Second).Format(TimestampLayout), true
}

func (r Row) Event(loc *time.Location) (Event, error) {
	at, err := ParseTimestamp(r.DataHora, loc)
	if err != nil {
		return Event{}, err
	}
	return Event{Time: at, Label: ParseLabel(r.Status)}, nil
}
