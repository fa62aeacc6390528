package live_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/live"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/testsupport"
	"github.com/goliatone/go-inlineform/pkg/values"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func fastSettings() *live.Settings {
	settings := live.DefaultSettings()
	settings.ReconnectTimeout = 20 * time.Millisecond
	return settings
}

func TestSubscriber_ReloadsInitialValuesWithoutSubmitting(t *testing.T) {
	hub := live.NewHub(fastSettings(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	lp := loop.New()
	persister := testsupport.NewRecordingPersister()
	f, coalescer := inline.NewForm(lp, persister.Persist, inline.WithFormOptions(
		form.WithInitialValues(values.Tree{"name": "Ada", "city": "London"}),
	))

	endpoint, err := live.SubscribeURL(srv.URL, "users/1")
	if err != nil {
		t.Fatalf("subscribe url: %v", err)
	}
	sub := live.Subscribe(context.Background(), endpoint, f, fastSettings())
	defer sub.Close()
	waitFor(t, "subscription", func() bool { return hub.Subscribers("users/1") == 1 })

	remote := values.Tree{"name": "Ada", "city": "Paris"}
	if err := hub.Publish("users/1", remote); err != nil {
		t.Fatalf("publish: %v", err)
	}
	testsupport.Settle(t, lp, func() bool {
		city, _ := values.Get(f.InitialValues(), "city")
		return city == "Paris"
	})

	if diff := cmp.Diff(remote, coalescer.Baseline()); diff != "" {
		t.Fatalf("baseline mismatch (-want +got):\n%s", diff)
	}
	if persister.Calls() != 0 {
		t.Fatalf("external refresh was persisted")
	}

	testsupport.Do(lp, func() {
		_ = f.Field("name").SetValue("Grace")
		_ = f.SubmitForm()
	})
	testsupport.Settle(t, lp, func() bool { return f.SubmitCount() == 1 && !f.IsSubmitting() })

	want := []map[string]any{{"name": "Grace"}}
	if diff := cmp.Diff(want, persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
	testsupport.Do(lp, f.Close)
}

func TestHub_OnlyNotifiesRecordSubscribers(t *testing.T) {
	hub := live.NewHub(fastSettings(), nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	lp := loop.New()
	f, _ := inline.NewForm(lp, testsupport.NewRecordingPersister().Persist, inline.WithFormOptions(
		form.WithInitialValues(values.Tree{"title": "draft"}),
	))
	endpoint, _ := live.SubscribeURL(srv.URL, "posts/1")
	sub := live.Subscribe(context.Background(), endpoint, f, fastSettings())
	defer sub.Close()
	waitFor(t, "subscription", func() bool { return hub.Subscribers("posts/1") == 1 })

	if err := hub.Publish("posts/2", values.Tree{"title": "other"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := hub.Publish("posts/1", values.Tree{"title": "final"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	testsupport.Settle(t, lp, func() bool {
		title, _ := values.Get(f.Values(), "title")
		return title == "final"
	})
	if got := sub.Received(); got != 1 {
		t.Fatalf("received %d events, want 1", got)
	}
}

func TestHub_RejectsBadRequests(t *testing.T) {
	denied := errors.New("bad token")
	hub := live.NewHub(nil, func(r *http.Request) error {
		if r.Header.Get("Authorization") != "Bearer ok" {
			return denied
		}
		return nil
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	tests := []struct {
		name   string
		record string
		header http.Header
		status int
	}{
		{name: "missing record", header: http.Header{"Authorization": {"Bearer ok"}}, status: http.StatusBadRequest},
		{name: "unauthorized", record: "a", status: http.StatusUnauthorized},
		{name: "accepted", record: "a", header: http.Header{"Authorization": {"Bearer ok"}}, status: http.StatusSwitchingProtocols},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := "ws" + srv.URL[len("http"):]
			if tt.record != "" {
				endpoint, _ = live.SubscribeURL(srv.URL, tt.record)
			}
			ws, resp, err := websocket.DefaultDialer.Dial(endpoint, tt.header)
			if ws != nil {
				ws.Close()
			}
			if resp == nil {
				t.Fatalf("no response: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestSubscribeURL(t *testing.T) {
	got, err := live.SubscribeURL("https://example.com/live?x=1", "users/7")
	if err != nil {
		t.Fatalf("subscribe url: %v", err)
	}
	if want := "wss://example.com/live?record=users%2F7&x=1"; got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}
