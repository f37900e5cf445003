package clientapp

import (
	"strconv"
	"time"

	"github.com/phillip-england/habitlog/internal/cooldown"
	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/tracker"
)

const historyTimeLayout = "2006-01-02 15:04"

type categoryView struct {
	Key      string
	Title    string
	Gated    bool
	Eligible bool
	Degraded bool
	Skipped  int

	HasLast      bool
	LastAt       string
	ElapsedHours string
	Elapsed      string

	ButtonLabel   string
	ShowEmergency bool

	History []historyItem
}

type historyItem struct {
	At    string
	Label eventlog.Label
}

func newCategoryView(v tracker.View) categoryView {
	c := categoryView{
		Key:      v.Category.Key,
		Title:    v.Category.Title,
		Gated:    v.Category.HasCooldown(),
		Eligible: v.Status.Eligible,
		Degraded: v.Degraded,
		Skipped:  v.Skipped,
		HasLast:  v.Last != nil,
	}
	if v.Last != nil {
		c.LastAt = v.Last.Time.Format("15:04")
		c.ElapsedHours = strconv.Itoa(int(v.Status.Elapsed / time.Hour))
		c.Elapsed = tracker.FormatDuration(v.Status.Elapsed)
	}

	switch {
	case v.Status.State == cooldown.StateCooldown:
		c.ButtonLabel = "Wait " + tracker.FormatDuration(v.Status.Remaining)
		c.ShowEmergency = v.Category.AllowEmergency
	default:
		c.ButtonLabel = "Record " + string(v.Category.RegularLabel)
	}

	for _, ev := range v.History {
		c.History = append(c.History, historyItem{At: ev.Time.Format(historyTimeLayout), Label: ev.Label})
	}
	return c
}
