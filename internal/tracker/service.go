// Package tracker combines the event store and the cooldown gate into the
// two use cases of the form: showing a category and recording an event.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/phillip-england/habitlog/internal/cooldown"
	"github.com/phillip-england/habitlog/internal/eventlog"
)

var (
	ErrUnknownCategory     = errors.New("unknown category")
	ErrEmergencyNotAllowed = errors.New("category has no emergency override")
)

type Service struct {
	store      *eventlog.Store
	categories []Category
	byKey      map[string]Category
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(store *eventlog.Store, categories []Category, opts ...Option) (*Service, error) {
	s := &Service{
		store:      store,
		categories: categories,
		byKey:      make(map[string]Category, len(categories)),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, c := range categories {
		if err := eventlog.ValidateSheetName(c.Sheet); err != nil {
			return nil, fmt.Errorf("category %s: %w", c.Key, err)
		}
		if _, dup := s.byKey[c.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Key)
		}
		s.byKey[c.Key] = c
	}
	return s, nil
}

func (s *Service) Categories() []Category {
	out := make([]Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Service) Category(key string) (Category, error) {
	c, ok := s.byKey[key]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, key)
	}
	return c, nil
}

// View is one render of a category. Degraded means the log could not be
// read and the status was computed as if there were no history.
type View struct {
	Category Category         `json:"category"`
	Status   cooldown.Status  `json:"status"`
	Last     *eventlog.Event  `json:"last,omitempty"`
	History  []eventlog.Event `json:"history"`
	Total    int              `json:"total"`
	Skipped  int              `json:"skipped"`
	Degraded bool             `json:"degraded"`
	Now      time.Time        `json:"now"`
}

func (s *Service) View(ctx context.Context, key string, historyLimit int) (View, error) {
	c, err := s.Category(key)
	if err != nil {
		return View{}, err
	}
	now := s.now().In(s.store.Location())
	result := s.store.Load(ctx, c.Sheet)
	return buildView(c, result, now, historyLimit), nil
}

func (s *Service) Views(ctx context.Context, historyLimit int) []View {
	views := make([]View, 0, len(s.categories))
	for _, c := range s.categories {
		view, _ := s.View(ctx, c.Key, historyLimit)
		views = append(views, view)
	}
	return views
}

func buildView(c Category, result eventlog.LoadResult, now time.Time, historyLimit int) View {
	view := View{
		Category: c,
		Total:    len(result.Events),
		Skipped:  result.Skipped,
		Degraded: result.Status == eventlog.LoadFailed,
		Now:      now,
		History:  latest(result.Events, historyLimit),
	}
	var lastAt time.Time
	if last, ok := result.Last(); ok {
		view.Last = &last
		lastAt = last.Time
	}
	view.Status = cooldown.Evaluate(now, lastAt, c.Cooldown)
	return view
}

// latest returns up to limit events, newest first. limit <= 0 means all.
func latest(events []eventlog.Event, limit int) []eventlog.Event {
	sorted := make([]eventlog.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

type Recorded struct {
	Category Category        `json:"category"`
	Event    eventlog.Event  `json:"event"`
	Status   cooldown.Status `json:"status"`
	State    cooldown.State  `json:"state"`
}

// Record appends a new event stamped with the current time. The gate is
// evaluated against a fresh read; emergency bypasses it and records the
// Emergency label. Status reports the gate as it stood before the write.
func (s *Service) Record(ctx context.Context, key string, emergency bool) (Recorded, error) {
	c, err := s.Category(key)
	if err != nil {
		return Recorded{}, err
	}
	if emergency && !c.AllowEmergency {
		return Recorded{}, fmt.Errorf("%s: %w", c.Key, ErrEmergencyNotAllowed)
	}

	now := s.now().In(s.store.Location())
	result := s.store.Load(ctx, c.Sheet)
	if result.Status == eventlog.LoadFailed {
		return Recorded{}, result.Err
	}
	view := buildView(c, result, now, 0)

	state, err := cooldown.Authorize(view.Status, emergency)
	if err != nil {
		return Recorded{Category: c, Status: view.Status, State: state}, err
	}

	label := c.RegularLabel
	if emergency {
		label = eventlog.LabelEmergency
	}
	ev := eventlog.NewEvent(now, label)
	if err := s.store.Append(ctx, c.Sheet, ev); err != nil {
		return Recorded{}, err
	}
	s.logger.Info("event recorded", "category", c.Key, "label", string(label), "state", string(state))
	return Recorded{Category: c, Event: ev, Status: view.Status, State: state}, nil
}

// FormatDuration renders a duration as "7h 30m", truncated to minutes.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
