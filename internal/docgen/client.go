package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wasel-app/settlement-engine/internal/domain"
	"github.com/wasel-app/settlement-engine/internal/logging"
)

// Client talks to the external document generator, which renders a
// human-readable settlement receipt from a frozen snapshot. The returned
// reference is opaque: the engine stores it but never interprets it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type renderRequest struct {
	SnapshotID     string     `json:"snapshot_id"`
	TransferID     string     `json:"transfer_id"`
	FromActorID    string     `json:"from_actor_id"`
	ToActorID      string     `json:"to_actor_id"`
	Country        string     `json:"country"`
	Currency       string     `json:"currency"`
	Amount         string     `json:"amount"`
	Method         string     `json:"method"`
	ProofRef       *string    `json:"proof_ref,omitempty"`
	CollectedSum   string     `json:"collected_sum"`
	SettledSum     string     `json:"settled_sum"`
	PendingBalance string     `json:"pending_balance"`
	DeliveredCount int        `json:"delivered_count"`
	CancelledCount int        `json:"cancelled_count"`
	ReturnedCount  int        `json:"returned_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

type renderResponse struct {
	DocumentRef string `json:"document_ref"`
}

func (c *Client) Render(ctx context.Context, snap *domain.SettlementSnapshot) (string, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(renderRequest{
		SnapshotID:     snap.ID.String(),
		TransferID:     snap.TransferID.String(),
		FromActorID:    snap.FromActorID.String(),
		ToActorID:      snap.ToActorID.String(),
		Country:        snap.Country,
		Currency:       string(snap.Currency),
		Amount:         snap.Amount.String(),
		Method:         string(snap.Method),
		ProofRef:       snap.ProofRef,
		CollectedSum:   snap.CollectedSum.String(),
		SettledSum:     snap.SettledSum.String(),
		PendingBalance: snap.PendingBalance.String(),
		DeliveredCount: snap.DeliveredCount,
		CancelledCount: snap.CancelledCount,
		ReturnedCount:  snap.ReturnedCount,
		CreatedAt:      snap.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("Render: marshal: %w", err)
	}

	url := c.baseURL + "/render"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("Render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Render: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("document generator response",
		"status", resp.StatusCode,
		"snapshot_id", snap.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("Render: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("Render: decode: %w", err)
	}
	if out.DocumentRef == "" {
		return "", fmt.Errorf("Render: empty document_ref")
	}

	return out.DocumentRef, nil
}
