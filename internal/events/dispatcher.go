package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wasel-app/settlement-engine/internal/domain"
)

type eventRepo interface {
	GetPending(ctx context.Context, limit int) ([]domain.SettlementEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SettlementEventStatus) error
}

const maxAttempts = 5

// Dispatcher drains the settlement event outbox and posts each event to the
// notification channel. Delivery is at-least-once: an event is marked
// dispatched only after a 2xx response, and subscribers must tolerate
// replays.
type Dispatcher struct {
	events     eventRepo
	sinkURL    string
	httpClient *http.Client
	logger     *slog.Logger
	interval   time.Duration
}

func NewDispatcher(events eventRepo, sinkURL string, logger *slog.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		events:  events,
		sinkURL: sinkURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger:   logger,
		interval: interval,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("event dispatcher started", "interval", d.interval, "sink", d.sinkURL)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("event dispatcher stopped")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	events, err := d.events.GetPending(ctx, 10)
	if err != nil {
		d.logger.Error("failed to fetch pending settlement events", "error", err)
		return
	}

	for _, event := range events {
		if err := d.dispatch(ctx, event); err != nil {
			d.logger.Error("failed to dispatch settlement event",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
			status := domain.SettlementEventStatusPending
			if event.Attempts+1 >= maxAttempts {
				status = domain.SettlementEventStatusFailed
			}
			if err := d.events.UpdateStatus(ctx, event.ID, status); err != nil {
				d.logger.Error("failed to update event status", "event_id", event.ID, "error", err)
			}
			continue
		}

		if err := d.events.UpdateStatus(ctx, event.ID, domain.SettlementEventStatusDispatched); err != nil {
			d.logger.Error("failed to mark event dispatched", "event_id", event.ID, "error", err)
		}
	}
}

type sinkEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

func (d *Dispatcher) dispatch(ctx context.Context, event domain.SettlementEvent) error {
	if d.sinkURL == "" {
		// No subscriber configured; events still record the audit trail.
		return nil
	}

	body, err := json.Marshal(sinkEnvelope{
		EventID:   event.ID.String(),
		EventType: string(event.EventType),
		Payload:   event.Payload,
		EmittedAt: event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("dispatch: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.sinkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
