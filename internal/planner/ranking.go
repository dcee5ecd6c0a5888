package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/types"
)

const (
	RankingDebounce = 500 * time.Millisecond
	maxRankEntries  = DefaultPageSize
)

// Ranker reorders a page of opportunities for a room.
type Ranker interface {
	Rank(ctx context.Context, roomCode string, page []types.Opportunity) ([]string, error)
}

type RankingClient struct {
	url    string
	client *http.Client
}

func NewRankingClient(url string, client *http.Client) *RankingClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RankingClient{url: url, client: client}
}

// Rank posts at most one page of opportunities and returns the ranked ids.
func (r *RankingClient) Rank(ctx context.Context, roomCode string, page []types.Opportunity) ([]string, error) {
	if len(page) > maxRankEntries {
		page = page[:maxRankEntries]
	}

	req := types.RankRequest{RoomCode: roomCode, Opportunities: make([]types.RankEntry, 0, len(page))}
	for _, o := range page {
		req.Opportunities = append(req.Opportunities, types.RankEntry{Id: o.Id, Name: o.Name})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode rank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rank request: unexpected status %d", resp.StatusCode)
	}

	var out types.RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rank response: %w", err)
	}

	return out.RankedIds, nil
}
