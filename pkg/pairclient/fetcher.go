package pairclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPStateFetcher reads the server's synchronous poll endpoints
type HTTPStateFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStateFetcher creates a fetcher for the given API base URL
func NewHTTPStateFetcher(baseURL string, client *http.Client) *HTTPStateFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStateFetcher{baseURL: baseURL, client: client}
}

// pairingStateResponse mirrors the gateway's pairing state JSON
type pairingStateResponse struct {
	PairingID      string     `json:"pairing_id"`
	Status         string     `json:"status"`
	PendingActorID *string    `json:"pending_actor_id,omitempty"`
	PressedAt      *time.Time `json:"pressed_at,omitempty"`
	Outcome        *struct {
		ID string `json:"id"`
	} `json:"outcome,omitempty"`
}

// contestStateResponse mirrors the gateway's contest state JSON
type contestStateResponse struct {
	ContestID       string `json:"contest_id"`
	Status          string `json:"status"`
	InitiatorScore  *int   `json:"initiator_score,omitempty"`
	RespondentScore *int   `json:"respondent_score,omitempty"`
}

func (f *HTTPStateFetcher) FetchPairing(ctx context.Context, pairingID string) (PairingView, error) {
	var resp pairingStateResponse
	if err := f.get(ctx, fmt.Sprintf("%s/api/pairings/%s/state", f.baseURL, pairingID), &resp); err != nil {
		return PairingView{}, err
	}

	view := PairingView{
		PairingID: resp.PairingID,
		Status:    resp.Status,
		PressedAt: resp.PressedAt,
	}
	if resp.PendingActorID != nil {
		view.PendingActorID = *resp.PendingActorID
	}
	if resp.Outcome != nil {
		view.OutcomeID = resp.Outcome.ID
	}
	return view, nil
}

func (f *HTTPStateFetcher) FetchContest(ctx context.Context, contestID string) (ContestView, error) {
	var resp contestStateResponse
	if err := f.get(ctx, fmt.Sprintf("%s/api/contests/%s/state", f.baseURL, contestID), &resp); err != nil {
		return ContestView{}, err
	}

	return ContestView{
		ContestID:       resp.ContestID,
		Status:          resp.Status,
		InitiatorScore:  resp.InitiatorScore,
		RespondentScore: resp.RespondentScore,
	}, nil
}

func (f *HTTPStateFetcher) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
