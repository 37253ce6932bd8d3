package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const playfulSignalPath = "/truth/playful-signal"

// HTTPEmitter posts outcomes as JSON to <BaseURL>/truth/playful-signal.
type HTTPEmitter struct {
	HTTP    *http.Client
	BaseURL string
}

func NewHTTPEmitter(baseURL string, timeout time.Duration) *HTTPEmitter {
	return &HTTPEmitter{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (e *HTTPEmitter) EmitOutcome(ctx context.Context, o Outcome) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	client := e.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+playfulSignalPath, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("indexer returned status %d", e.StatusCode)
}

// LogEmitter only logs. Used when the indexer integration is disabled.
type LogEmitter struct {
	Logger *zap.Logger
}

func (e LogEmitter) EmitOutcome(_ context.Context, o Outcome) error {
	e.Logger.Info("signal emission disabled, dropping outcome",
		zap.String("claimId", o.ClaimID),
		zap.String("argumentId", o.ArgumentID),
	)
	return nil
}
