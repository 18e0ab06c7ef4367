package core

import (
	"fmt"
	"time"
)

const (
	DefaultLookbackDays    = 3
	DefaultExplicitCapDays = 90
)

type WindowOptions struct {
	LookbackDays    int
	ExplicitCapDays int
}

func (o WindowOptions) lookbackDays() int {
	if o.LookbackDays <= 0 {
		return DefaultLookbackDays
	}
	return o.LookbackDays
}

func (o WindowOptions) explicitCapDays() int {
	if o.ExplicitCapDays <= 0 {
		return DefaultExplicitCapDays
	}
	return o.ExplicitCapDays
}

// ResolvedWindow is the outcome of window resolution: the day range to fetch,
// the mode that actually applies, and the progress document to persist once
// the run succeeds. Next is computed up front; callers must not persist it on
// failure so that a crashed run resumes from the same cursor.
type ResolvedWindow struct {
	Window Window
	Mode   SyncMode
	Next   SyncProgress
}

// ResolveSyncWindow decides the date range for one run.
//
// Explicit ranges are validated against the hard day cap. Incremental covers
// a rolling lookback ending today, floored at the connection's configured
// sync start date. Backfill advances exactly one day per run from the cursor;
// when the cursor reaches today the backfill state clears and the run
// resolves as incremental.
func ResolveSyncWindow(progress SyncProgress, mode SyncMode, explicit *Window, now time.Time, opts WindowOptions) (ResolvedWindow, error) {
	if now.IsZero() {
		now = time.Now()
	}
	today := DayOf(now)

	if mode == "" {
		mode = SyncModeIncremental
		if progress.BackfillSince != "" || progress.BackfillCursor != "" {
			mode = SyncModeBackfill
		}
	}

	switch mode {
	case SyncModeExplicit:
		return resolveExplicitWindow(progress, explicit, now, opts)
	case SyncModeIncremental:
		return resolveIncrementalWindow(progress, today, now, opts)
	case SyncModeBackfill:
		return resolveBackfillWindow(progress, today, now, opts)
	default:
		return ResolvedWindow{}, fmt.Errorf("%w: %q", ErrInvalidSyncMode, mode)
	}
}

func resolveExplicitWindow(progress SyncProgress, explicit *Window, now time.Time, opts WindowOptions) (ResolvedWindow, error) {
	if explicit == nil || explicit.Start.IsZero() || explicit.End.IsZero() {
		return ResolvedWindow{}, fmt.Errorf("%w: explicit mode requires a date range", ErrInvalidSyncWindow)
	}
	start := DayOf(explicit.Start)
	end := DayOf(explicit.End)
	if end.Before(start) {
		return ResolvedWindow{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidSyncWindow, FormatDay(start), FormatDay(end))
	}
	window := Window{Start: start, End: end}
	if span := window.SpanDays(); span > opts.explicitCapDays() {
		return ResolvedWindow{}, fmt.Errorf("%w: range spans %d days, cap is %d", ErrInvalidSyncWindow, span, opts.explicitCapDays())
	}

	next := progress
	next.Version = SyncProgressVersion
	syncedAt := now.UTC()
	next.LastSyncAt = &syncedAt
	if current, err := ParseDay(next.LastSyncDay); err != nil || end.After(current) {
		next.LastSyncDay = FormatDay(end)
	}
	return ResolvedWindow{Window: window, Mode: SyncModeExplicit, Next: next}, nil
}

func resolveIncrementalWindow(progress SyncProgress, today time.Time, now time.Time, opts WindowOptions) (ResolvedWindow, error) {
	start := today.AddDate(0, 0, -opts.lookbackDays())
	if progress.SyncStartDate != "" {
		floor, err := ParseDay(progress.SyncStartDate)
		if err != nil {
			return ResolvedWindow{}, err
		}
		if floor.After(start) {
			start = floor
		}
	}
	if start.After(today) {
		start = today
	}

	next := progress
	next.Version = SyncProgressVersion
	next.LastSyncDay = FormatDay(today)
	syncedAt := now.UTC()
	next.LastSyncAt = &syncedAt
	return ResolvedWindow{
		Window: Window{Start: start, End: today},
		Mode:   SyncModeIncremental,
		Next:   next,
	}, nil
}

func resolveBackfillWindow(progress SyncProgress, today time.Time, now time.Time, opts WindowOptions) (ResolvedWindow, error) {
	anchor := progress.BackfillCursor
	if anchor == "" {
		anchor = progress.BackfillSince
	}
	if anchor == "" {
		return ResolvedWindow{}, fmt.Errorf("%w: backfill mode requires an anchor date", ErrInvalidSyncWindow)
	}
	cursor, err := ParseDay(anchor)
	if err != nil {
		return ResolvedWindow{}, err
	}

	// Cursor caught up: clear backfill state and run as incremental.
	if !cursor.Before(today) {
		resolved, err := resolveIncrementalWindow(progress, today, now, opts)
		if err != nil {
			return ResolvedWindow{}, err
		}
		resolved.Next.BackfillSince = ""
		resolved.Next.BackfillCursor = ""
		return resolved, nil
	}

	next := progress
	next.Version = SyncProgressVersion
	syncedAt := now.UTC()
	next.LastSyncAt = &syncedAt
	advanced := cursor.AddDate(0, 0, 1)
	if advanced.Before(today) {
		next.BackfillCursor = FormatDay(advanced)
	} else {
		next.BackfillSince = ""
		next.BackfillCursor = ""
	}
	if current, parseErr := ParseDay(next.LastSyncDay); parseErr != nil || cursor.After(current) {
		next.LastSyncDay = FormatDay(cursor)
	}
	return ResolvedWindow{
		Window: Window{Start: cursor, End: cursor},
		Mode:   SyncModeBackfill,
		Next:   next,
	}, nil
}
