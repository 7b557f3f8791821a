package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/internal/domain/model"
)

// MemoryStore keeps everything in maps guarded by one RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	opts    options
	users   map[string]model.User
	byEmail map[string]string
	persona map[string]model.Persona
	quests  map[string]map[string]model.Quest // user -> title -> quest
	events  map[string][]model.XPEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    defaultOptions(opts),
		users:   make(map[string]model.User),
		byEmail: make(map[string]string),
		persona: make(map[string]model.Persona),
		quests:  make(map[string]map[string]model.Quest),
		events:  make(map[string][]model.XPEvent),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return model.User{}, fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if u.ID == "" {
		u.ID = s.opts.newID()
	}
	if _, ok := s.users[u.ID]; ok {
		return model.User{}, fmt.Errorf("%w: user %s", ErrConflict, u.ID)
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return s.users[id], nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return u, nil
}

func (s *MemoryStore) FindUsers(_ context.Context, email, name string, limit int) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0)
	for _, u := range s.users {
		if (email == "" || u.Email == email) && (name == "" || u.Name == name) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertPersona(_ context.Context, p model.Persona) (model.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.UserID]; !ok {
		return model.Persona{}, fmt.Errorf("%w: user %s", ErrNotFound, p.UserID)
	}
	p.Attributes = maps.Clone(p.Attributes)
	s.persona[p.UserID] = p
	return p, nil
}

func (s *MemoryStore) Persona(_ context.Context, userID string) (model.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persona[userID]
	if !ok {
		return model.Persona{}, fmt.Errorf("%w: persona for %s", ErrNotFound, userID)
	}
	p.Attributes = maps.Clone(p.Attributes)
	return p, nil
}

func (s *MemoryStore) SaveQuests(_ context.Context, userID string, drafts []model.QuestDraft, at time.Time) ([]model.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	byTitle := s.quests[userID]
	if byTitle == nil {
		byTitle = make(map[string]model.Quest)
		s.quests[userID] = byTitle
	}
	out := make([]model.Quest, 0, len(drafts))
	for _, d := range drafts {
		q, ok := byTitle[d.Title]
		if !ok {
			q = model.Quest{ID: s.opts.newID(), UserID: userID, Title: d.Title, Status: model.StatusAvailable, CreatedAt: at}
		}
		q.Description, q.Category, q.XPReward = d.Description, d.Category, d.XPReward
		byTitle[d.Title] = q
		out = append(out, q)
	}
	return out, nil
}

func (s *MemoryStore) Quests(_ context.Context, userID string, status model.QuestStatus) ([]model.Quest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Quest, 0, len(s.quests[userID]))
	for _, q := range s.quests[userID] {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *MemoryStore) CountQuests(_ context.Context, userID string, status model.QuestStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, q := range s.quests[userID] {
		if status == "" || q.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteQuest(_ context.Context, userID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quests[userID][title]; !ok {
		return fmt.Errorf("%w: quest %q", ErrNotFound, title)
	}
	delete(s.quests[userID], title)
	return nil
}

func (s *MemoryStore) CompleteQuest(_ context.Context, userID, title string, at time.Time) (Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return Completion{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	q, ok := s.quests[userID][title]
	if !ok {
		return Completion{}, fmt.Errorf("%w: quest %q", ErrNotFound, title)
	}
	if q.Completed() {
		return Completion{}, fmt.Errorf("%w: %q", ErrAlreadyCompleted, title)
	}
	total, err := addXP(u.TotalXP, q.XPReward)
	if err != nil {
		return Completion{}, err
	}

	q.Status = model.StatusCompleted
	completedAt := at
	q.CompletedAt = &completedAt
	ev := model.XPEvent{ID: s.opts.newID(), UserID: userID, QuestID: q.ID, Amount: q.XPReward, At: at}

	prev := u.TotalXP
	u.TotalXP = total
	u.UpdatedAt = at
	s.users[userID] = u
	s.quests[userID][title] = q
	s.events[userID] = append(s.events[userID], ev)
	return Completion{Quest: q, Event: ev, PreviousTotal: prev, TotalXP: total}, nil
}

func (s *MemoryStore) XPEvents(_ context.Context, userID string, from, to time.Time) ([]model.XPEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.XPEvent, 0)
	for _, e := range s.events[userID] {
		if !e.At.Before(from) && e.At.Before(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// addXP guards the ledger total against leaving the supported range.
func addXP(total, amount int64) (int64, error) {
	if amount < 0 || amount > leveling.MaxTotalXP-total {
		return 0, fmt.Errorf("%w: cannot add %d to %d", leveling.ErrInvalidAmount, amount, total)
	}
	return total + amount, nil
}
