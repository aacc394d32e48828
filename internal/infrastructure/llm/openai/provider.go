// Package openai implements llmclient.Client against the OpenAI chat
// completions wire format (also spoken by Bailian/Qwen, MiniMax,
// DeepSeek, Ollama, vLLM). Adapted from the teacher's
// infrastructure/llm/openai provider: the streaming GenerateStream path
// and tool-calling plumbing are dropped to match spec §4.4's single
// synchronous chat(conversation) -> text | error contract.
package openai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/n4ar/sabi/internal/domain/entity"
	"github.com/n4ar/sabi/internal/llmclient"
	"go.uber.org/zap"
)

// Provider is a native OpenAI-compatible HTTP client implementing
// llmclient.Client.
type Provider struct {
	baseURL    string
	apiKey     string
	model      string
	maxHistory int
	client     *http.Client
	logger     *zap.Logger
}

// Config configures a Provider (spec §3 provider/model/api_key/base_url
// and max_history_messages).
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxHistoryMessages int
}

// New creates an OpenAI-compatible provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
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
		logger:     logger.With(zap.String("provider", "openai")),
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

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", llmclient.NewNetworkError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	if len(apiResp.Choices) == 0 {
		return "", llmclient.NewEmptyResponseError()
	}
	text := apiResp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", llmclient.NewEmptyResponseError()
	}

	if p.logger != nil {
		p.logger.Debug("openai chat completed", zap.String("finish_reason", apiResp.Choices[0].FinishReason))
	}
	return text, nil
}

// ListModels queries GET /models.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	if p.apiKey == "" {
		return nil, llmclient.NewMissingAPIKeyError()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, llmclient.NewNetworkError(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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

	var listResp ModelsResponse
	if err := json.Unmarshal(respBody, &listResp); err != nil {
		return nil, llmclient.NewInvalidResponseError(err)
	}

	names := make([]string, 0, len(listResp.Data))
	for _, m := range listResp.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

// buildRequest applies the sliding window and role mapping (spec §4.4).
// Strips a provider-prefixed model name (e.g. "bailian/qwen3-max" ->
// "qwen3-max") the way the teacher's provider does.
func (p *Provider) buildRequest(conversation []entity.Message) *Request {
	windowed := llmclient.Window(conversation, p.maxHistory)

	model := p.model
	if idx := strings.Index(model, "/"); idx >= 0 {
		model = model[idx+1:]
	}

	req := &Request{Model: model, Temperature: 0.7}
	for _, msg := range windowed {
		role := "system"
		if !msg.IsSystem() {
			role = llmclient.Role(msg.Role(), "assistant")
		}
		req.Messages = append(req.Messages, Message{Role: role, Content: msg.Content()})
	}
	return req
}
