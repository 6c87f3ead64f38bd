package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// maxErrorBody caps how much of an upstream error body ends up in error_message.
const maxErrorBody = 512

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *apiResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *apiResponse) decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

// doJSON sends a JSON request with an optional bearer token and reads the whole
// response. Only transport faults are returned as errors.
func doJSON(ctx context.Context, client *http.Client, method, url, bearer string, payload any) (*apiResponse, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("error marshalling payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return send(client, req)
}

func send(client *http.Client, req *http.Request) (*apiResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return &apiResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// upstreamError renders a failed response as a single line for error_message.
// It prefers the message field of the common error envelopes.
func upstreamError(platform string, resp *apiResponse) string {
	var envelope struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	msg := ""
	if err := json.Unmarshal(resp.Body, &envelope); err == nil {
		switch e := envelope.Error.(type) {
		case string:
			msg = e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				msg = m
			}
		}
		if msg == "" && len(envelope.Errors) > 0 {
			msg = envelope.Errors[0].Message
		}
		if msg == "" {
			msg = envelope.Detail
		}
		if msg == "" {
			msg = envelope.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(resp.Body))
	}
	if len(msg) > maxErrorBody {
		// Cut on a rune boundary; Postgres rejects invalid UTF-8 in TEXT.
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(msg[n]) {
			n--
		}
		msg = msg[:n]
	}
	if msg == "" {
		return fmt.Sprintf("%s API returned status %d", platform, resp.StatusCode)
	}
	return fmt.Sprintf("%s API returned status %d: %s", platform, resp.StatusCode, msg)
}

func baseURLOr(baseURL, fallback string) string {
	if baseURL == "" {
		return fallback
	}
	return strings.TrimRight(baseURL, "/")
}
