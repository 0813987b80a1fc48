// Package notify implements the best-effort fan-out between the broker and
// its registered hospital nodes. A notification is a plain HTTP POST of the
// current record to each peer's notify endpoint: no retry, no backoff, no
// acknowledgment tracking, no ordering across peers, no idempotency key.
// Failures are logged and counted, nothing more.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/medbridge/exchange/internal/shared/metrics"
	"github.com/medbridge/exchange/internal/shared/types"
	"github.com/rs/zerolog"
)

// Peer is a registered notification target
type Peer struct {
	ID           types.ID  `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	NotifyURL    string    `json:"notify_url"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Notifier posts records to peers, fire-and-forget
type Notifier struct {
	source string
	client *http.Client
	log    zerolog.Logger
}

// NewNotifier creates a notifier identifying itself as source in the
// X-Source-Facility header.
func NewNotifier(source string, log zerolog.Logger) *Notifier {
	return &Notifier{
		source: source,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Post delivers one record to one notify URL synchronously.
func (n *Notifier) Post(ctx context.Context, url string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Source-Facility", n.source)
	req.Header.Set("X-Notification-ID", uuid.New().String())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Broadcast fans the record out to every peer. Each delivery runs in its own
// goroutine detached from the request that triggered it; the caller gets no
// signal of success or failure.
func (n *Notifier) Broadcast(peers []Peer, record any) {
	for _, peer := range peers {
		go func(peer Peer) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := n.Post(ctx, peer.NotifyURL, record); err != nil {
				metrics.RecordNotification(n.source, peer.Code, "failed")
				n.log.Error().
					Err(err).
					Str("peer", peer.Code).
					Str("url", peer.NotifyURL).
					Msg("notification dropped")
				return
			}

			metrics.RecordNotification(n.source, peer.Code, "sent")
			n.log.Debug().
				Str("peer", peer.Code).
				Msg("notification delivered")
		}(peer)
	}
}

// NotifyBroker posts the record to the broker's notify endpoint in a
// detached goroutine, mirroring Broadcast for the node-to-broker direction.
func (n *Notifier) NotifyBroker(brokerURL string, record any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		url := brokerURL + "/api/v1/notify"
		if err := n.Post(ctx, url, record); err != nil {
			metrics.RecordNotification(n.source, "broker", "failed")
			n.log.Error().
				Err(err).
				Str("url", url).
				Msg("broker notification dropped")
			return
		}

		metrics.RecordNotification(n.source, "broker", "sent")
	}()
}
