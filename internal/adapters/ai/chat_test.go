package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/profilequest/internal/adapters/ai"
)

func chatServer(t *testing.T, statuses []int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer gsk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" || len(body.Messages) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if n < len(statuses) && statuses[n] != http.StatusOK {
			w.WriteHeader(statuses[n])
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "  " + content + "\n"}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(url string) *ai.GroqClient {
	return ai.NewGroqClient("gsk-test", ai.WithBaseURL(url+"/"), ai.WithRetries(3, time.Millisecond))
}

func TestGroqClient(t *testing.T) {
	ctx := context.Background()
	req := ai.ChatRequest{Model: "llama-3.3-70b-versatile", Prompt: "hello", Temperature: 0.7}

	Convey("Given a healthy endpoint", t, func() {
		srv, calls := chatServer(t, nil, `[{"title":"x"}]`)
		out, err := newClient(srv.URL).Complete(ctx, req)

		Convey("Then the trimmed content of the first choice is returned", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, `[{"title":"x"}]`)
			So(calls.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given an endpoint that rate limits twice", t, func() {
		srv, calls := chatServer(t, []int{http.StatusTooManyRequests, http.StatusBadGateway}, "ok")
		out, err := newClient(srv.URL).Complete(ctx, req)

		Convey("Then the client retries until it succeeds", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "ok")
			So(calls.Load(), ShouldEqual, 3)
		})
	})

	Convey("Given an endpoint that keeps failing", t, func() {
		statuses := []int{500, 500, 500, 500, 500}
		srv, calls := chatServer(t, statuses, "never")
		_, err := newClient(srv.URL).Complete(ctx, req)

		Convey("Then it gives up after the configured retries", func() {
			So(errors.Is(err, ai.ErrUpstream), ShouldBeTrue)
			So(calls.Load(), ShouldEqual, 4)
		})
	})

	Convey("Given an endpoint that rejects the request", t, func() {
		srv, calls := chatServer(t, []int{http.StatusBadRequest}, "never")
		_, err := newClient(srv.URL).Complete(ctx, req)

		Convey("Then the client does not retry", func() {
			So(errors.Is(err, ai.ErrUpstream), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "400")
			So(calls.Load(), ShouldEqual, 1)
		})
	})

	Convey("Given an endpoint that returns no choices", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()
		_, err := newClient(srv.URL).Complete(ctx, req)
		So(errors.Is(err, ai.ErrEmptyResult), ShouldBeTrue)
	})

	Convey("Given no API key", t, func() {
		c := ai.NewGroqClient("")
		So(c.Enabled(), ShouldBeFalse)
		_, err := c.Complete(ctx, req)
		So(errors.Is(err, ai.ErrDisabled), ShouldBeTrue)
	})

	Convey("Given a cancelled context during backoff", t, func() {
		srv, _ := chatServer(t, []int{500, 500, 500, 500}, "never")
		c := ai.NewGroqClient("gsk-test", ai.WithBaseURL(srv.URL), ai.WithRetries(3, time.Hour))
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := c.Complete(cctx, req)
		So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
	})
}
