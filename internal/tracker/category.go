package tracker

import (
	"time"

	"github.com/phillip-england/habitlog/internal/eventlog"
)

const DefaultInhalerCooldown = 8 * time.Hour

// Category is a tracked habit: its own sheet, label and cooldown policy.
// A zero Cooldown means no policy.
type Category struct {
	Key            string         `json:"key"`
	Title          string         `json:"title"`
	Sheet          string         `json:"sheet"`
	Cooldown       time.Duration  `json:"cooldown"`
	RegularLabel   eventlog.Label `json:"regularLabel"`
	AllowEmergency bool           `json:"allowEmergency"`
}

func (c Category) HasCooldown() bool {
	return c.Cooldown > 0
}

// DefaultCategories returns the inhaler (cooldown-gated) and substance
// (tracking only) categories on their original worksheets.
func DefaultCategories(inhalerCooldown time.Duration) []Category {
	if inhalerCooldown <= 0 {
		inhalerCooldown = DefaultInhalerCooldown
	}
	return []Category{
		{
			Key:            "inhaler",
			Title:          "Inhaler (asthma)",
			Sheet:          "Dados",
			Cooldown:       inhalerCooldown,
			RegularLabel:   eventlog.LabelRegular,
			AllowEmergency: true,
		},
		{
			Key:          "substance",
			Title:        "Substance use",
			Sheet:        "baseado",
			RegularLabel: eventlog.LabelUse,
		},
	}
}

func Sheets(categories []Category) []string {
	sheets := make([]string, 0, len(categories))
	for _, c := range categories {
		sheets = append(sheets, c.Sheet)
	}
	return sheets
}
