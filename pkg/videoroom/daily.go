package videoroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DailyProvider provisions rooms and meeting tokens via the Daily REST API.
type DailyProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewDailyProvider(baseURL, apiKey string) *DailyProvider {
	return &DailyProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type dailyRoomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (p *DailyProvider) CreateRoom(ctx context.Context, req RoomRequest) (*Room, error) {
	body := map[string]interface{}{
		"name":    req.Name,
		"privacy": "private",
		"properties": map[string]interface{}{
			"nbf":               req.NotBefore.Unix(),
			"exp":               req.Expiry.Unix(),
			"eject_at_room_exp": true,
			"enable_screenshare": false,
		},
	}
	var out dailyRoomResponse
	if err := p.post(ctx, "/rooms", body, &out); err != nil {
		return nil, err
	}
	return &Room{Name: out.Name, URL: out.URL}, nil
}

type dailyTokenResponse struct {
	Token string `json:"token"`
}

func (p *DailyProvider) CreateJoinToken(ctx context.Context, req TokenRequest) (string, error) {
	body := map[string]interface{}{
		"properties": map[string]interface{}{
			"room_name": req.RoomName,
			"user_id":   req.UserID,
			"is_owner":  req.IsOwner,
			"exp":       req.Expiry.Unix(),
		},
	}
	var out dailyTokenResponse
	if err := p.post(ctx, "/meeting-tokens", body, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (p *DailyProvider) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	bodyBytes, _ := json.Marshal(body)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(apiReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("[VideoRoom] POST %s status=%d body=%s", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("video room api: %d %s", resp.StatusCode, string(respBody))
	}
	return json.Unmarshal(respBody, out)
}
