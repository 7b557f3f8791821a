package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/profilequest/internal/adapters/ai"
	"github.com/okian/profilequest/internal/adapters/repository"
	service "github.com/okian/profilequest/internal/app"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/domain/history"
	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/internal/domain/questgen"
	"github.com/okian/profilequest/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

const password = "correct-horse"

type fakeAvatars struct{}

func (fakeAvatars) Generate(context.Context, ai.AvatarRequest) ai.Image {
	return ai.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png", Source: "fake"}
}

// countingGenerator returns fixed quests and counts calls.
type countingGenerator struct {
	mu     sync.Mutex
	calls  int
	quests []model.QuestDraft
}

func (g *countingGenerator) GenerateQuests(_ context.Context, req questgen.Request) ([]model.QuestDraft, questgen.Source, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	titles := make([]string, 0, len(req.Existing))
	for _, q := range req.Existing {
		titles = append(titles, q.Title)
	}
	return questgen.Dedupe(g.quests, titles), questgen.SourceModel, nil
}

func (g *countingGenerator) GeneratePersona(context.Context, questgen.PersonaInput) (questgen.PersonaResult, questgen.Source, error) {
	return questgen.PersonaResult{}, "", errors.New("not used")
}

func (g *countingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var start = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func newService(opts ...service.Option) (*service.Service, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(start)
	am := auth.NewManager("0123456789abcdef0123", auth.WithBcryptCost(bcrypt.MinCost))
	opts = append([]service.Option{service.WithClock(clock), service.WithAvatars(fakeAvatars{})}, opts...)
	return service.New(repository.NewMemoryStore(), am, opts...), clock
}

func signup(svc *service.Service, email string) service.Session {
	sess, err := svc.Signup(context.Background(), service.Credentials{Email: email, Name: "Ada", Password: password})
	So(err, ShouldBeNil)
	return sess
}

func TestAccounts(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc, _ := newService()

		Convey("When a user signs up with a mixed-case email", func() {
			sess := signup(svc, "  Ada@Example.COM ")

			Convey("Then the email is stored lowercased at level one", func() {
				So(sess.User.Email, ShouldEqual, "ada@example.com")
				So(sess.User.Level, ShouldEqual, 1)
				So(sess.User.NextLevelXP, ShouldEqual, 100)
				So(sess.Token, ShouldNotBeEmpty)
			})

			Convey("And the token resolves to the user", func() {
				id, err := svc.Authenticate(ctx, sess.Token)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, sess.User.ID)
				me, err := svc.Me(ctx, id)
				So(err, ShouldBeNil)
				So(me.Name, ShouldEqual, "Ada")
			})

			Convey("And the same email cannot sign up again", func() {
				_, err := svc.Signup(ctx, service.Credentials{Email: "ada@example.com", Password: password})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("And login matches the email case-insensitively", func() {
				got, err := svc.Login(ctx, service.Credentials{Email: "ADA@example.com", Password: password})
				So(err, ShouldBeNil)
				So(got.User.ID, ShouldEqual, sess.User.ID)
			})

			Convey("And a wrong password or unknown email are indistinguishable", func() {
				_, err := svc.Login(ctx, service.Credentials{Email: "ada@example.com", Password: "nope-nope"})
				So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
				_, err = svc.Login(ctx, service.Credentials{Email: "bob@example.com", Password: password})
				So(errors.Is(err, auth.ErrInvalidCredentials), ShouldBeTrue)
			})

			Convey("And profiles can be looked up by exact email", func() {
				ps, err := svc.FindProfiles(ctx, "ADA@example.com", "")
				So(err, ShouldBeNil)
				So(len(ps), ShouldEqual, 1)
				So(ps[0].ID, ShouldEqual, sess.User.ID)

				_, err = svc.FindProfiles(ctx, "", "  ")
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When signup input is invalid", func() {
			_, err := svc.Signup(ctx, service.Credentials{Email: "not-an-email", Password: password})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "email")

			_, err = svc.Signup(ctx, service.Credentials{Email: "ok@example.com", Password: "short"})
			So(errors.Is(err, auth.ErrWeakPassword), ShouldBeTrue)
		})

		Convey("When a name is omitted", func() {
			sess, err := svc.Signup(ctx, service.Credentials{Email: "grace@example.com", Password: password})
			So(err, ShouldBeNil)
			So(sess.User.Name, ShouldEqual, "grace")
		})

		Convey("When the token is garbage", func() {
			_, err := svc.Authenticate(ctx, "x.y.z")
			So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
		})
	})
}

func TestQuestLifecycle(t *testing.T) {
	Convey("Given a user with saved quests", t, func() {
		ctx := context.Background()
		svc, clock := newService(service.WithRefillThreshold(0))
		uid := signup(svc, "ada@example.com").User.ID

		saved, err := svc.SaveQuests(ctx, uid, []model.QuestDraft{
			{Title: "  Write   a post ", Category: "thought leadership", XPReward: 250},
			{Title: "Read a paper", XPReward: 40},
			{Title: "read A paper", XPReward: 99},
		})
		So(err, ShouldBeNil)
		So(len(saved), ShouldEqual, 2)

		Convey("Then drafts are normalized and case-duplicates dropped", func() {
			qs, err := svc.ListQuests(ctx, uid, "")
			So(err, ShouldBeNil)
			So(len(qs), ShouldEqual, 2)
			So(qs[0].Title, ShouldEqual, "Read a paper")
			So(qs[0].Category, ShouldEqual, model.CategorySkill)
			So(qs[1].Title, ShouldEqual, "Write a post")
			So(qs[1].Category, ShouldEqual, model.CategoryLeadership)
		})

		Convey("When a quest is completed", func() {
			res, err := svc.CompleteQuest(ctx, uid, "Write a post")

			Convey("Then the reward crosses two thresholds", func() {
				So(err, ShouldBeNil)
				So(res.LeveledUp, ShouldBeTrue)
				So(res.Outcome.LevelsGained(), ShouldEqual, 2)
				So(res.Profile.Level, ShouldEqual, 3)
				So(res.Profile.XP, ShouldEqual, 0)
				So(res.Profile.NextLevelXP, ShouldEqual, 225)
				So(res.Quest.Status, ShouldEqual, model.StatusCompleted)
			})

			Convey("And completing it again is rejected", func() {
				_, err := svc.CompleteQuest(ctx, uid, "Write a post")
				So(errors.Is(err, repository.ErrAlreadyCompleted), ShouldBeTrue)
			})

			Convey("And saving it again does not reopen it", func() {
				_, err := svc.SaveQuests(ctx, uid, []model.QuestDraft{{Title: "Write a post", XPReward: 250}})
				So(err, ShouldBeNil)
				done, err := svc.ListQuests(ctx, uid, "completed")
				So(err, ShouldBeNil)
				So(len(done), ShouldEqual, 1)
			})

			Convey("And progress matches the leveling engine", func() {
				p, err := svc.Progress(ctx, uid)
				So(err, ShouldBeNil)
				want, _ := leveling.ComputeLevel(250)
				So(p.Level, ShouldEqual, want.Level)
				So(p.TotalXP, ShouldEqual, 250)
				So(p.Available, ShouldEqual, 1)
				So(p.Completed, ShouldEqual, 1)
			})

			Convey("And deleting the quest keeps the xp", func() {
				So(svc.DeleteQuest(ctx, uid, "Write a post"), ShouldBeNil)
				p, err := svc.Progress(ctx, uid)
				So(err, ShouldBeNil)
				So(p.TotalXP, ShouldEqual, 250)
			})

			Convey("And the weekly history puts it in today", func() {
				clock.Advance(time.Hour)
				h, err := svc.History(ctx, uid, "", "")
				So(err, ShouldBeNil)
				So(h.Range, ShouldEqual, history.Weekly)
				So(h.Timezone, ShouldEqual, "UTC")
				So(len(h.Buckets), ShouldEqual, 7)
				So(h.Buckets[6].XP, ShouldEqual, 250)
				So(h.Total, ShouldEqual, 250)
			})

			Convey("And a yearly history in another zone still counts it", func() {
				h, err := svc.History(ctx, uid, "yearly", "Asia/Tokyo")
				So(err, ShouldBeNil)
				So(h.Buckets[9].XP, ShouldEqual, 250)
				So(h.Timezone, ShouldEqual, "Asia/Tokyo")
			})
		})

		Convey("When inputs are invalid", func() {
			_, err := svc.CompleteQuest(ctx, uid, "Nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			_, err = svc.CompleteQuest(ctx, uid, " ")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.ListQuests(ctx, uid, "archived")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.SaveQuests(ctx, uid, nil)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.SaveQuests(ctx, uid, []model.QuestDraft{{Title: "Huge", XPReward: 10001}})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			So(errors.Is(err, questgen.ErrInvalidDraft), ShouldBeTrue)

			_, err = svc.History(ctx, uid, "hourly", "")
			So(errors.Is(err, history.ErrInvalidRange), ShouldBeTrue)

			_, err = svc.History(ctx, uid, "daily", "Mars/Olympus")
			So(errors.Is(err, service.ErrInvalidTimezone), ShouldBeTrue)

			So(errors.Is(svc.DeleteQuest(ctx, uid, "Nope"), repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestPersona(t *testing.T) {
	Convey("Given a user without a persona", t, func() {
		ctx := context.Background()
		svc, _ := newService()
		uid := signup(svc, "ada@example.com").User.ID

		_, err := svc.Persona(ctx, uid)
		So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

		Convey("When a persona is generated without a model", func() {
			g, err := svc.GeneratePersona(ctx, uid, service.PersonaRequest{Input: questgen.PersonaInput{CurrentRole: "Analyst"}})

			Convey("Then the default persona comes back with an avatar", func() {
				So(err, ShouldBeNil)
				So(g.Source, ShouldEqual, questgen.SourceFallback)
				So(g.Persona.PersonaType, ShouldEqual, model.DefaultPersonaType)
				So(g.Persona.Avatar, ShouldStartWith, "data:image/png;base64,")
				So(g.AvatarSource, ShouldEqual, "fake")
				So(len(g.Quests), ShouldEqual, questgen.QuestsPerBatch)
			})
		})

		Convey("When a persona is saved", func() {
			p, err := svc.SavePersona(ctx, uid, service.PersonaUpdate{PersonaType: " Data  Wizard ", Attributes: map[string]int{"logic": 8}})
			So(err, ShouldBeNil)
			So(p.PersonaType, ShouldEqual, "Data Wizard")

			Convey("Then it is returned and drives quest generation", func() {
				got, err := svc.Persona(ctx, uid)
				So(err, ShouldBeNil)
				So(got.Attributes["logic"], ShouldEqual, 8)

				gq, err := svc.GenerateQuests(ctx, uid, "")
				So(err, ShouldBeNil)
				So(gq.Quests[0].Title, ShouldEqual, "Data Wizard L1 Quest 1")
			})
		})

		Convey("When persona input is invalid", func() {
			_, err := svc.SavePersona(ctx, uid, service.PersonaUpdate{Attributes: map[string]int{"logic": 11}})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.SavePersona(ctx, uid, service.PersonaUpdate{Avatar: "https://example.com/a.png"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.GeneratePersona(ctx, uid, service.PersonaRequest{Reference: "data:nope"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When avatars are requested", func() {
			a, err := svc.GenerateAvatar(ctx, uid, service.AvatarInput{})
			So(err, ShouldBeNil)
			So(a.Style, ShouldEqual, questgen.BadgeStyle)
			So(a.DataURL, ShouldNotBeEmpty)

			a, err = svc.GenerateAvatar(ctx, uid, service.AvatarInput{Kind: service.AvatarPersona, Style: "pixel"})
			So(err, ShouldBeNil)
			So(a.Style, ShouldEqual, "pixel")

			_, err = svc.GenerateAvatar(ctx, uid, service.AvatarInput{Kind: "statue"})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestRefill(t *testing.T) {
	Convey("Given a started service with a refill threshold of two", t, func() {
		ctx := context.Background()
		gen := &countingGenerator{quests: []model.QuestDraft{
			{Title: "Fresh one", Category: model.CategorySkill, XPReward: 60},
			{Title: "Fresh two", Category: model.CategoryNetworking, XPReward: 60},
			{Title: "Fresh three", Category: model.CategoryPortfolio, XPReward: 60},
		}}
		svc, _ := newService(service.WithGenerator(gen), service.WithRefillThreshold(2), service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		uid := signup(svc, "ada@example.com").User.ID
		_, err := svc.SaveQuests(ctx, uid, []model.QuestDraft{{Title: "Only quest", XPReward: 10}})
		So(err, ShouldBeNil)

		Convey("When the last available quest is completed", func() {
			_, err := svc.CompleteQuest(ctx, uid, "Only quest")
			So(err, ShouldBeNil)

			Convey("Then new quests appear without duplicating old titles", func() {
				deadline := time.Now().Add(2 * time.Second)
				var avail []model.Quest
				for time.Now().Before(deadline) {
					avail, err = svc.ListQuests(ctx, uid, "available")
					So(err, ShouldBeNil)
					if len(avail) == 3 {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				So(len(avail), ShouldEqual, 3)
				So(gen.Calls(), ShouldEqual, 1)
			})
		})

		Convey("When the service stops", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stats(ctx)["started"], ShouldEqual, false)

			Convey("Then completions still succeed without a refill", func() {
				_, err := svc.CompleteQuest(ctx, uid, "Only quest")
				So(err, ShouldBeNil)
				So(gen.Calls(), ShouldEqual, 0)
			})
		})
	})
}

func TestServiceStartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc, _ := newService(service.WithWorkerCount(3), service.WithQueueSize(8))

		Convey("When it is started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.Stats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["workers"], ShouldEqual, 3)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Health(ctx), ShouldBeNil)
		})
	})
}
