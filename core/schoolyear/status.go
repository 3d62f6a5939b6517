package schoolyear

import (
	"sort"
	"time"
)

// ResolveYearStatus classifies a year relative to the reference instant.
// Both boundary instants count as active (inclusive range).
func ResolveYearStatus(startsAt, endsAt, reference time.Time) YearStatus {
	if reference.Before(startsAt) {
		return YearUpcoming
	}
	if reference.After(endsAt) {
		return YearArchived
	}
	return YearActive
}

// DerivePeriods maps periods, supplied in ascending StartsAt order, to their
// view models: a 1-based order in iteration order plus a derived status.
// The order is recomputed at every read; it is never stored, so any change
// to the period set renumbers all periods.
func DerivePeriods(yearStatus YearStatus, reference time.Time, periods []EvaluationPeriod) []PeriodView {
	views := make([]PeriodView, 0, len(periods))
	for i, period := range periods {
		views = append(views, PeriodView{
			ID:       period.ID,
			Label:    period.Label,
			StartsAt: period.StartsAt,
			EndsAt:   period.EndsAt,
			Order:    i + 1,
			Status:   resolvePeriodStatus(yearStatus, period, reference),
		})
	}
	return views
}

// resolvePeriodStatus classifies a single period. Periods of an archived year
// are archived unconditionally, even when they have not started yet.
// Boundary instants count as open.
func resolvePeriodStatus(yearStatus YearStatus, period EvaluationPeriod, reference time.Time) PeriodStatus {
	if yearStatus == YearArchived {
		return PeriodArchived
	}
	if period.StartsAt.After(reference) {
		return PeriodPlanned
	}
	if period.EndsAt.Before(reference) {
		return PeriodLocked
	}
	return PeriodOpen
}

// Serialize builds the view model for a fetched year: derived year status,
// level labels in level display order, absence unit labels, and the derived
// period views.
func Serialize(year SchoolYear, absenceUnits []string, reference time.Time) YearView {
	status := ResolveYearStatus(year.StartsAt, year.EndsAt, reference)
	if absenceUnits == nil {
		absenceUnits = []string{}
	}
	return YearView{
		ID:            year.ID,
		Label:         year.Label,
		StartsAt:      year.StartsAt,
		EndsAt:        year.EndsAt,
		Status:        status,
		Levels:        levelLabels(year.Levels),
		AbsenceUnits:  absenceUnits,
		StudentsCount: year.StudentsCount,
		ClassesCount:  year.ClassesCount,
		GroupsCount:   year.GroupsCount,
		Periods:       DerivePeriods(status, reference, year.Periods),
		UpdatedAt:     year.UpdatedAt,
	}
}

// levelLabels returns non-empty level labels sorted by level display order.
func levelLabels(levels []LevelRef) []string {
	refs := make([]LevelRef, 0, len(levels))
	for _, ref := range levels {
		if ref.Label != "" {
			refs = append(refs, ref)
		}
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Order < refs[j].Order })

	labels := make([]string, 0, len(refs))
	for _, ref := range refs {
		labels = append(labels, ref.Label)
	}
	return labels
}
