package questsim

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/profilequest/internal/adapters/http/api"
	"github.com/okian/profilequest/internal/adapters/repository"
	service "github.com/okian/profilequest/internal/app"
	"github.com/okian/profilequest/internal/auth"
	"github.com/okian/profilequest/internal/domain/leveling"
	"github.com/okian/profilequest/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func newAPI() *httptest.Server {
	am := auth.NewManager("0123456789abcdef0123", auth.WithBcryptCost(bcrypt.MinCost))
	svc := service.New(repository.NewMemoryStore(), am, service.WithRefillThreshold(0))
	srv := api.NewServer(svc, api.WithRateLimit(10_000, 10_000, time.Minute))
	mux := http.NewServeMux()
	srv.Register(context.Background(), mux)
	return httptest.NewServer(srv.Handler(mux))
}

func TestRun(t *testing.T) {
	Convey("Given a live API over a memory store", t, func() {
		ts := newAPI()
		defer ts.Close()

		cfg := &Config{
			BaseURL:       ts.URL,
			Users:         3,
			QuestsPerUser: 4,
			Workers:       8,
			MaxReward:     300,
			Timeout:       5 * time.Second,
			Timezone:      "UTC",
		}

		Convey("When the simulation runs", func() {
			rep, err := Run(context.Background(), cfg)

			Convey("Then every quest is completed exactly once and all profiles verify", func() {
				So(err, ShouldBeNil)
				So(rep.Users, ShouldEqual, 3)
				So(rep.QuestsSaved, ShouldEqual, 12)
				So(rep.Completions, ShouldEqual, 12)
				So(rep.DuplicatesDenied, ShouldEqual, 12)
				So(rep.TotalXP, ShouldBeGreaterThanOrEqualTo, 12)
				So(rep.TotalXP, ShouldBeLessThanOrEqualTo, 12*300)
			})
		})

		Convey("When the configuration asks for no users", func() {
			cfg.Users = 0
			_, err := Run(context.Background(), cfg)

			Convey("Then it is rejected before any request", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a server that is down", t, func() {
		ts := newAPI()
		ts.Close()

		Convey("When the simulation runs", func() {
			_, err := Run(context.Background(), &Config{BaseURL: ts.URL, Users: 1, QuestsPerUser: 1, Timeout: time.Second})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health")
			})
		})
	})
}

func TestBuildPlans(t *testing.T) {
	Convey("Given a plan for two users", t, func() {
		plans := buildPlans(&Config{Users: 2, QuestsPerUser: 5, MaxReward: 50})

		Convey("Then emails are distinct and rewards stay in range", func() {
			So(plans, ShouldHaveLength, 2)
			So(plans[0].Email, ShouldNotEqual, plans[1].Email)
			for _, p := range plans {
				So(p.Quests, ShouldHaveLength, 5)
				for _, q := range p.Quests {
					So(q.XPReward, ShouldBeBetweenOrEqual, 1, 50)
				}
				_, err := leveling.ComputeLevel(p.expectedXP())
				So(err, ShouldBeNil)
			}
		})
	})
}

func TestClientErrors(t *testing.T) {
	Convey("Given a server that always conflicts", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"code":"conflict"}`, http.StatusConflict)
		}))
		defer ts.Close()

		Convey("When a quest is completed", func() {
			_, err := NewClient(ts.URL, time.Second).Complete(context.Background(), "tok", "x")

			Convey("Then the status is exposed", func() {
				So(IsStatus(err, http.StatusConflict), ShouldBeTrue)
				So(IsStatus(err, http.StatusNotFound), ShouldBeFalse)
			})
		})
	})

	Convey("Retry-After parsing", t, func() {
		So(retryAfter("3"), ShouldEqual, 3*time.Second)
		So(retryAfter(""), ShouldEqual, time.Second)
		So(retryAfter("soon"), ShouldEqual, time.Second)
	})
}
