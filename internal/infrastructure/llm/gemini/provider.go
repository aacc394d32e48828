// Package gemini implements llmclient.Client against the Google Gemini
// generateContent API. Adapted from the teacher's
// infrastructure/llm/gemini provider: the streaming GenerateStream path
// and function-calling plumbing are dropped (spec §4.4's contract is a
// single synchronous chat(conversation) -> text | error), and the
// sliding window and role mapping move to llmclient.Window/llmclient.Role.
package gemini

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/n4ar/sabi/internal/domain/entity"
	"github.com/n4ar/sabi/internal/llmclient"
	"go.uber.org/zap"
)

// Provider is a native Gemini API client implementing llmclient.Client.
type Provider struct {
	baseURL        string
	apiKey         string
	model          string
	maxHistory     int
	client         *http.Client
	logger         *zap.Logger
}

// Config configures a Provider (spec §3 provider/model/api_key/base_url
// and max_history_messages).
type Config struct {
	BaseURL          string
	APIKey           string
	Model            string
	MaxHistoryMessages int
}

// New creates a Gemini provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Provider{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxHistory: cfg.MaxHistoryMessages,
		client:     &http.Client{Transport: transport},
		logger:     logger.With(zap.String("provider", "gemini")),
	}
}

var _ llmclient.Client = (*Provider)(nil)

// Chat implements llmclient.Client.
func (p *Provider) Chat(ctx context.Context, conversation []entity.Message) (string, error) {
	if p.apiKey == "" {
		return "", llmclient.NewMissingAPIKeyError()
	}

	apiReq := p.buildRequest(conversation)
	body, err := json.Marshal(apiReq)
	if err != nil {
		return "", llmclient.NewInvalidResponseError(err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", llmclient.NewNetworkError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", llmclient.NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", llmclient.NewNetworkError(err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", llmclient.NewRateLimitedError()
	}
	if resp.StatusCode != http.StatusOK {
		return "", llmclient.NewAPIError(resp.StatusCode, string(respBody))
	}

	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", llmclient.NewInvalidResponseError(err)
	}

	if len(apiResp.Candidates) == 0 {
		return "", llmclient.NewEmptyResponseError()
	}

	var text strings.Builder
	for _, part := range apiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", llmclient.NewEmptyResponseError()
	}

	if p.logger != nil {
		p.logger.Debug("gemini chat completed", zap.String("finish_reason", apiResp.Candidates[0].FinishReason))
	}
	return text.String(), nil
}

// ListModels queries the models.list endpoint.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.apiKey == "" {
		return nil, llmclient.NewMissingAPIKeyError()
	}

	url := fmt.Sprintf("%s/v1beta/models?key=%s", p.baseURL, p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, llmclient.NewNetworkError(err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, llmclient.NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llmclient.NewNetworkError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, llmclient.NewAPIError(resp.StatusCode, string(respBody))
	}

	var listResp ListModelsResponse
	if err := json.Unmarshal(respBody, &listResp); err != nil {
		return nil, llmclient.NewInvalidResponseError(err)
	}

	names := make([]string, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

// buildRequest applies the sliding window and role mapping, hoisting the
// System message into Gemini's dedicated systemInstruction slot (spec
// §4.4).
func (p *Provider) buildRequest(conversation []entity.Message) *Request {
	windowed := llmclient.Window(conversation, p.maxHistory)

	req := &Request{
		GenerationConfig: &GenerationConfig{Temperature: 0.7},
	}

	for _, msg := range windowed {
		if msg.IsSystem() {
			req.SystemInstruction = &Content{Parts: []Part{{Text: msg.Content()}}}
			continue
		}
		req.Contents = append(req.Contents, Content{
			Role:  llmclient.Role(msg.Role(), "model"),
			Parts: []Part{{Text: msg.Content()}},
		})
	}

	return req
}
