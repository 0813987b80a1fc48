package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPostSetsHeaders(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("stmarys", zerolog.Nop())
	if err := n.Post(context.Background(), srv.URL, map[string]string{"name": "Ana"}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	r := <-received
	if r.Header.Get("X-Source-Facility") != "stmarys" {
		t.Errorf("Expected X-Source-Facility 'stmarys', got '%s'", r.Header.Get("X-Source-Facility"))
	}
	if r.Header.Get("X-Notification-ID") == "" {
		t.Error("Expected X-Notification-ID header to be set")
	}
	if r.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Expected JSON content type, got '%s'", r.Header.Get("Content-Type"))
	}
}

func TestPostReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier("general", zerolog.Nop())
	if err := n.Post(context.Background(), srv.URL, map[string]string{}); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestPostReturnsErrorOnUnreachablePeer(t *testing.T) {
	n := NewNotifier("general", zerolog.Nop())
	if err := n.Post(context.Background(), "http://127.0.0.1:1/notify", map[string]string{}); err == nil {
		t.Error("Expected error for unreachable peer")
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	hits := make(chan string, 2)
	makePeer := func(code string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			hits <- code + ":" + body["name"]
			w.WriteHeader(http.StatusOK)
		}))
	}

	srvA := makePeer("a")
	defer srvA.Close()
	srvB := makePeer("b")
	defer srvB.Close()

	n := NewNotifier("hie-broker", zerolog.Nop())
	n.Broadcast([]Peer{
		{Code: "a", NotifyURL: srvA.URL},
		{Code: "b", NotifyURL: srvB.URL},
	}, map[string]string{"name": "Ana"})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case hit := <-hits:
			got[hit] = true
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for broadcast deliveries")
		}
	}

	if !got["a:Ana"] || !got["b:Ana"] {
		t.Errorf("Expected both peers to receive the record, got %v", got)
	}
}

func TestBroadcastSurvivesFailingPeer(t *testing.T) {
	hits := make(chan struct{}, 1)
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	n := NewNotifier("hie-broker", zerolog.Nop())
	n.Broadcast([]Peer{
		{Code: "down", NotifyURL: "http://127.0.0.1:1/notify"},
		{Code: "up", NotifyURL: healthy.URL},
	}, map[string]string{"name": "Ana"})

	select {
	case <-hits:
	case <-time.After(5 * time.Second):
		t.Fatal("Healthy peer never received the notification")
	}
}

func TestNotifyBrokerPostsToNotifyEndpoint(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("lakeside", zerolog.Nop())
	n.NotifyBroker(srv.URL, map[string]string{"name": "Ana"})

	select {
	case path := <-paths:
		if path != "/api/v1/notify" {
			t.Errorf("Expected POST to /api/v1/notify, got '%s'", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Broker never received the notification")
	}
}
