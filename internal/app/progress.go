package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/profilequest/internal/domain/history"
	"github.com/okian/profilequest/internal/domain/model"
)

// Progress is a profile with quest counts.
type Progress struct {
	model.Profile
	Available int `json:"available_quests"`
	Completed int `json:"completed_quests"`
}

// Progress returns the level state of userID derived from the XP ledger.
func (s *Service) Progress(ctx context.Context, userID string) (Progress, error) {
	p, err := s.Me(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	avail, err := s.store.CountQuests(ctx, userID, model.StatusAvailable)
	if err != nil {
		return Progress{}, fmt.Errorf("count quests: %w", err)
	}
	done, err := s.store.CountQuests(ctx, userID, model.StatusCompleted)
	if err != nil {
		return Progress{}, fmt.Errorf("count quests: %w", err)
	}
	return Progress{Profile: p, Available: avail, Completed: done}, nil
}

// History is XP earned per bucket of a range.
type History struct {
	Range    history.Range    `json:"range"`
	Timezone string           `json:"timezone"`
	Buckets  []history.Bucket `json:"buckets"`
	Total    int64            `json:"total"`
}

// History buckets the XP events of userID over rangeName in the IANA zone tz.
// An empty range is weekly and an empty zone is the configured default.
func (s *Service) History(ctx context.Context, userID, rangeName, tz string) (History, error) {
	if rangeName == "" {
		rangeName = string(history.Weekly)
	}
	r, err := history.ParseRange(rangeName)
	if err != nil {
		return History{}, err
	}
	loc := s.historyLoc
	if tz = strings.TrimSpace(tz); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return History{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
		}
	}

	buckets, err := history.BuildBuckets(r, s.clock.Now().In(loc))
	if err != nil {
		return History{}, err
	}
	from, to := history.Window(buckets)
	evs, err := s.store.XPEvents(ctx, userID, from, to)
	if err != nil {
		return History{}, fmt.Errorf("load xp events: %w", err)
	}
	events := make([]history.Event, 0, len(evs))
	for _, e := range evs {
		events = append(events, history.Event{At: e.At, XP: e.Amount})
	}
	if buckets, err = history.AggregateEvents(buckets, events); err != nil {
		return History{}, err
	}

	var total int64
	for _, b := range buckets {
		total += b.XP
	}
	return History{Range: r, Timezone: loc.String(), Buckets: buckets, Total: total}, nil
}
