package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// MaxQuestsPerSave bounds one save request.
const MaxQuestsPerSave = 50

// GeneratedQuests is an unsaved batch of quests.
type GeneratedQuests struct {
	Quests []model.QuestDraft `json:"quests"`
	Source questgen.Source    `json:"source"`
}

// GenerateQuests proposes new quests for userID at their current level.
// An empty personaType uses the stored persona.
func (s *Service) GenerateQuests(ctx context.Context, userID, personaType string) (GeneratedQuests, error) {
	req, err := s.questRequest(ctx, userID, personaType)
	if err != nil {
		return GeneratedQuests{}, err
	}
	drafts, src, err := s.gen.GenerateQuests(ctx, req)
	if err != nil {
		return GeneratedQuests{}, err
	}
	return GeneratedQuests{Quests: drafts, Source: src}, nil
}

func (s *Service) questRequest(ctx context.Context, userID, personaType string) (questgen.Request, error) {
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return questgen.Request{}, fmt.Errorf("load user: %w", err)
	}
	st, err := leveling.ComputeLevel(u.TotalXP)
	if err != nil {
		return questgen.Request{}, err
	}
	personaType = strings.TrimSpace(personaType)
	if personaType == "" {
		if personaType, err = s.personaType(ctx, userID); err != nil {
			return questgen.Request{}, err
		}
	}
	quests, err := s.store.Quests(ctx, userID, "")
	if err != nil {
		return questgen.Request{}, fmt.Errorf("list quests: %w", err)
	}
	existing := make([]model.QuestDraft, 0, len(quests))
	for _, q := range quests {
		existing = append(existing, model.QuestDraft{Title: q.Title, Description: q.Description, Category: q.Category, XPReward: q.XPReward})
	}
	return questgen.Request{PersonaType: personaType, Level: st.Level, Existing: existing}, nil
}

// SaveQuests validates and stores drafts for userID. Saving a title that
// already exists updates it without reopening a completed quest.
func (s *Service) SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft) ([]model.Quest, error) {
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: no quests to save", ErrInvalidInput)
	}
	if len(drafts) > MaxQuestsPerSave {
		return nil, fmt.Errorf("%w: at most %d quests per save", ErrInvalidInput, MaxQuestsPerSave)
	}
	clean := make([]model.QuestDraft, 0, len(drafts))
	for i, d := range drafts {
		n, err := questgen.NormalizeDraft(d)
		if err != nil {
			return nil, fmt.Errorf("%w: quest %d: %w", ErrInvalidInput, i, err)
		}
		clean = append(clean, n)
	}
	clean = questgen.Dedupe(clean, nil)
	saved, err := s.store.SaveQuests(ctx, userID, clean, s.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("save quests: %w", err)
	}
	return saved, nil
}

// ListQuests lists quests of userID filtered by status
// (available, completed or all; empty means available).
func (s *Service) ListQuests(ctx context.Context, userID, status string) ([]model.Quest, error) {
	st, err := model.ParseStatusFilter(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	qs, err := s.store.Quests(ctx, userID, st)
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	return qs, nil
}

// DeleteQuest removes a quest. XP already earned from it is kept.
func (s *Service) DeleteQuest(ctx context.Context, userID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := s.store.DeleteQuest(ctx, userID, title); err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	return nil
}

// CompletionResult reports a completion and the level change it caused.
type CompletionResult struct {
	Quest     model.Quest      `json:"quest"`
	Outcome   leveling.Outcome `json:"outcome"`
	Profile   model.Profile    `json:"profile"`
	LeveledUp bool             `json:"leveled_up"`
}

// CompleteQuest completes an available quest and credits its reward. When
// few quests remain a refill is scheduled; refill problems never fail the
// completion.
func (s *Service) CompleteQuest(ctx context.Context, userID, title string) (CompletionResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return CompletionResult{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	c, err := s.store.CompleteQuest(ctx, userID, title, s.clock.Now().UTC())
	if err != nil {
		return CompletionResult{}, fmt.Errorf("complete quest: %w", err)
	}
	out, err := leveling.Apply(c.PreviousTotal, c.Quest.XPReward)
	if err != nil {
		return CompletionResult{}, err
	}
	metrics.RecordQuestCompleted(c.Quest.XPReward, out.LevelsGained())

	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("load user: %w", err)
	}
	u.TotalXP = c.TotalXP
	p, err := model.NewProfile(u)
	if err != nil {
		return CompletionResult{}, err
	}
	if out.LeveledUp() {
		s.logger.Info(ctx, "level up",
			logger.String("user_id", userID),
			logger.Int("from", out.Before.Level),
			logger.Int("to", out.After.Level),
		)
	}

	s.maybeRefill(ctx, userID)
	return CompletionResult{Quest: c.Quest, Outcome: out, Profile: p, LeveledUp: out.LeveledUp()}, nil
}

func (s *Service) maybeRefill(ctx context.Context, userID string) {
	if s.refillThreshold == 0 {
		return
	}
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return
	}

	n, err := s.store.CountQuests(ctx, userID, model.StatusAvailable)
	if err != nil {
		s.logger.Warn(ctx, "count quests for refill", logger.String("user_id", userID), logger.Error(err))
		return
	}
	if n >= s.refillThreshold {
		return
	}
	if s.deduper.SeenAndRecord(ctx, userID) {
		metrics.RecordRefillDuplicate()
		return
	}
	if !q.Enqueue(ctx, model.RefillJob{UserID: userID, Reason: "completion"}) {
		s.deduper.Unrecord(ctx, userID)
		s.logger.Warn(ctx, "refill dropped", logger.String("user_id", userID))
	}
}

// Process generates and saves a refill batch. It implements the refill
// worker's processor and releases the user's refill claim when done.
func (s *Service) Process(ctx context.Context, job model.RefillJob) (int, error) {
	defer s.deduper.Unrecord(ctx, job.UserID)

	req, err := s.questRequest(ctx, job.UserID, "")
	if err != nil {
		return 0, err
	}
	drafts, src, err := s.gen.GenerateQuests(ctx, req)
	if err != nil {
		return 0, err
	}
	if len(drafts) == 0 {
		return 0, nil
	}
	saved, err := s.store.SaveQuests(ctx, job.UserID, drafts, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("save refill: %w", err)
	}
	s.logger.Debug(ctx, "quests refilled",
		logger.String("user_id", job.UserID),
		logger.String("source", string(src)),
		logger.Int("count", len(saved)),
	)
	return len(saved), nil
}
