// Package verify provides clients for the external action verifier.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/upclick/task-exchange/internal/exchange"
	"github.com/upclick/task-exchange/internal/model"
)

// HTTPVerifier asks an external service whether a user actually
// performed the claimed action on the target URL. Any transport or
// decode failure is returned as an error so the engine can surface
// it as a retryable condition instead of silently denying or
// granting the reward.
type HTTPVerifier struct {
	Endpoint string
	Client   *http.Client
}

// New builds an HTTPVerifier with a dedicated client. The per-call
// deadline comes from the engine's verify timeout via the request
// context, so the client itself carries only a generous ceiling.
func New(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type checkRequest struct {
	Type      string `json:"type"`
	TargetURL string `json:"target_url"`
	UserID    uint64 `json:"user_id"`
}

type checkResponse struct {
	Verified bool `json:"verified"`
}

// Check implements the engine's ActionVerifier contract.
func (v *HTTPVerifier) Check(ctx context.Context, taskType model.TaskType, targetURL string, userID uint64) (exchange.VerifyResult, error) {
	body, err := json.Marshal(checkRequest{Type: string(taskType), TargetURL: targetURL, UserID: userID})
	if err != nil {
		return exchange.Unverified, fmt.Errorf("encode check request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(body))
	if err != nil {
		return exchange.Unverified, fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return exchange.Unverified, fmt.Errorf("verifier call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exchange.Unverified, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return exchange.Unverified, fmt.Errorf("decode check response: %w", err)
	}
	if out.Verified {
		return exchange.Verified, nil
	}
	return exchange.Unverified, nil
}

// AlwaysVerified reports every action as performed. Used when no
// verifier endpoint is configured, e.g. local development.
func AlwaysVerified() exchange.ActionVerifier {
	return exchange.VerifierFunc(func(context.Context, model.TaskType, string, uint64) (exchange.VerifyResult, error) {
		return exchange.Verified, nil
	})
}
