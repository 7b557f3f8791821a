package repository

import (
	"context"
	"errors"
	"time"

	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/pkg/metrics"
)

// Instrument wraps s so every call records its latency under driver.
// Errors other than the store sentinels are also counted per operation.
func Instrument(driver string, s Store) Store {
	return &instrumented{driver: driver, next: s}
}

type instrumented struct {
	driver string
	next   Store
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(i.driver, op, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) && !errors.Is(err, ErrAlreadyCompleted) {
		metrics.RecordErrorByComponent("store", op)
	}
}

func (i *instrumented) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	start := time.Now()
	out, err := i.next.CreateUser(ctx, u)
	i.observe("create_user", start, err)
	return out, err
}

func (i *instrumented) UserByEmail(ctx context.Context, email string) (model.User, error) {
	start := time.Now()
	u, err := i.next.UserByEmail(ctx, email)
	i.observe("user_by_email", start, err)
	return u, err
}

func (i *instrumented) UserByID(ctx context.Context, id string) (model.User, error) {
	start := time.Now()
	u, err := i.next.UserByID(ctx, id)
	i.observe("user_by_id", start, err)
	return u, err
}

func (i *instrumented) FindUsers(ctx context.Context, email, name string, limit int) ([]model.User, error) {
	start := time.Now()
	out, err := i.next.FindUsers(ctx, email, name, limit)
	i.observe("find_users", start, err)
	return out, err
}

func (i *instrumented) UpsertPersona(ctx context.Context, p model.Persona) (model.Persona, error) {
	start := time.Now()
	out, err := i.next.UpsertPersona(ctx, p)
	i.observe("upsert_persona", start, err)
	return out, err
}

func (i *instrumented) Persona(ctx context.Context, userID string) (model.Persona, error) {
	start := time.Now()
	out, err := i.next.Persona(ctx, userID)
	i.observe("persona", start, err)
	return out, err
}

func (i *instrumented) SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft, at time.Time) ([]model.Quest, error) {
	start := time.Now()
	out, err := i.next.SaveQuests(ctx, userID, drafts, at)
	i.observe("save_quests", start, err)
	return out, err
}

func (i *instrumented) Quests(ctx context.Context, userID string, status model.QuestStatus) ([]model.Quest, error) {
	start := time.Now()
	out, err := i.next.Quests(ctx, userID, status)
	i.observe("quests", start, err)
	return out, err
}

func (i *instrumented) CountQuests(ctx context.Context, userID string, status model.QuestStatus) (int, error) {
	start := time.Now()
	n, err := i.next.CountQuests(ctx, userID, status)
	i.observe("count_quests", start, err)
	return n, err
}

func (i *instrumented) DeleteQuest(ctx context.Context, userID, title string) error {
	start := time.Now()
	err := i.next.DeleteQuest(ctx, userID, title)
	i.observe("delete_quest", start, err)
	return err
}

func (i *instrumented) CompleteQuest(ctx context.Context, userID, title string, at time.Time) (Completion, error) {
	start := time.Now()
	c, err := i.next.CompleteQuest(ctx, userID, title, at)
	i.observe("complete_quest", start, err)
	return c, err
}

func (i *instrumented) XPEvents(ctx context.Context, userID string, from, to time.Time) ([]model.XPEvent, error) {
	start := time.Now()
	out, err := i.next.XPEvents(ctx, userID, from, to)
	i.observe("xp_events", start, err)
	return out, err
}

func (i *instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := i.next.Ping(ctx)
	i.observe("ping", start, err)
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }
