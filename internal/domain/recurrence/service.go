// Package recurrence computes occurrence dates for recurring task templates.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/taskflow/taskflow-api/internal/domain"
)

// maxOccurrenceSteps bounds the forward walk in NextOccurrence.
const maxOccurrenceSteps = 1024

// Common errors
var (
	ErrNilTemplate     = errors.New("template cannot be nil")
	ErrSearchExhausted = errors.New("no occurrence found within search bound")
	ErrNilLocation     = errors.New("location cannot be nil")
)

// Occurrence is a computed slot of a recurring template.
type Occurrence struct {
	// Index is k in Advance(origin, type, k*interval), starting at 1.
	Index int

	// DueDate is set when the template has a due date.
	DueDate *time.Time

	// StartDate is set when the template has a start date. When both are
	// present the template's start-to-due offset is preserved.
	StartDate *time.Time

	// Anchor is DueDate, or StartDate when the template has no due date.
	// Instances are deduplicated on (template, Anchor).
	Anchor time.Time
}

// Service defines the interface for recurrence calculations
type Service interface {
	// NextOccurrence returns the first occurrence of template strictly after
	// `after`. A nil `after` yields the first occurrence following the
	// template itself.
	NextOccurrence(template *domain.Task, after *time.Time) (Occurrence, error)

	// IsDue reports whether an occurrence at `at` should be materialized at
	// `now`: occurrences are generated on their calendar day.
	IsDue(at, now time.Time) bool

	// LatestDue returns the last occurrence at or after `from` that is due
	// at `now` and not past the template's repeat_until. A `from` that is
	// not due itself is returned unchanged.
	LatestDue(template *domain.Task, from Occurrence, now time.Time) (Occurrence, error)

	// Location returns the location calendar arithmetic runs in.
	Location() *time.Location
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	loc *time.Location
}

// NewDefaultService creates a recurrence service computing in UTC
func NewDefaultService() Service {
	return &defaultService{loc: time.UTC}
}

// NewService creates a recurrence service computing in the given location
func NewService(loc *time.Location) (Service, error) {
	if loc == nil {
		return nil, ErrNilLocation
	}
	return &defaultService{loc: loc}, nil
}

// Location implements Service
func (s *defaultService) Location() *time.Location {
	return s.loc
}

// NextOccurrence implements Service
func (s *defaultService) NextOccurrence(template *domain.Task, after *time.Time) (Occurrence, error) {
	if template == nil {
		return Occurrence{}, ErrNilTemplate
	}
	if !template.RepeatType.Valid() {
		return Occurrence{}, fmt.Errorf("%w: %q", domain.ErrInvalidRepeatType, template.RepeatType)
	}
	if template.RepeatInterval <= 0 {
		return Occurrence{}, domain.ErrInvalidRepeatInterval
	}

	origin, ok := template.ScheduleAnchor()
	if !ok {
		return Occurrence{}, domain.ErrMissingSchedule
	}
	origin = origin.In(s.loc)

	k := 1
	if after != nil {
		k = estimateIndex(origin, after.In(s.loc), template.RepeatType, template.RepeatInterval)
	}

	for step := 0; step < maxOccurrenceSteps; step++ {
		at, err := Advance(origin, template.RepeatType, k*template.RepeatInterval)
		if err != nil {
			return Occurrence{}, err
		}
		if after == nil || at.After(*after) {
			return buildOccurrence(template, k, at), nil
		}
		k++
	}

	return Occurrence{}, fmt.Errorf("%w: template %s", ErrSearchExhausted, template.ID)
}

// IsDue implements Service
func (s *defaultService) IsDue(at, now time.Time) bool {
	return at.Before(s.startOfTomorrow(now))
}

// LatestDue implements Service
func (s *defaultService) LatestDue(template *domain.Task, from Occurrence, now time.Time) (Occurrence, error) {
	if !s.IsDue(from.Anchor, now) {
		return from, nil
	}

	limit := s.startOfTomorrow(now).Add(-time.Nanosecond)
	if template.RepeatUntil != nil && template.RepeatUntil.Before(limit) {
		limit = *template.RepeatUntil
	}
	if !from.Anchor.Before(limit) {
		return from, nil
	}

	beyond, err := s.NextOccurrence(template, &limit)
	if err != nil {
		return Occurrence{}, err
	}
	k := beyond.Index - 1
	if k <= from.Index {
		return from, nil
	}

	// NextOccurrence already validated the schedule.
	origin, _ := template.ScheduleAnchor()
	at, err := Advance(origin.In(s.loc), template.RepeatType, k*template.RepeatInterval)
	if err != nil {
		return Occurrence{}, err
	}
	return buildOccurrence(template, k, at), nil
}

func (s *defaultService) startOfTomorrow(now time.Time) time.Time {
	y, m, d := now.In(s.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, s.loc)
}

// buildOccurrence derives due/start dates for occurrence k at time `at`.
func buildOccurrence(template *domain.Task, k int, at time.Time) Occurrence {
	at = at.UTC()
	occ := Occurrence{Index: k, Anchor: at}

	if template.DueDate == nil {
		start := at
		occ.StartDate = &start
		return occ
	}

	due := at
	occ.DueDate = &due

	if template.StartDate != nil {
		offset := template.DueDate.Sub(*template.StartDate)
		start := due.Add(-offset)
		occ.StartDate = &start
	}

	return occ
}
