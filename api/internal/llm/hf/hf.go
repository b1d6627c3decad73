// Package hf — Hugging Face Inference (router), OpenAI-совместимый
// /v1/chat/completions.
package hf

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"study-bot/api/internal/llm"
	"study-bot/api/internal/util"
)

const DefaultBaseURL = "https://router.huggingface.co/v1"

type Provider struct {
	APIKey  string
	BaseURL string
	httpc   *http.Client
}

// New без таймаута клиента: долгие ответы модели не обрываем.
func New(key, baseURL string) *Provider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		APIKey:  strings.TrimSpace(key),
		BaseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (p *Provider) WithHTTPClient(c *http.Client) *Provider {
	if c != nil {
		p.httpc = c
	}
	return p
}

func (p *Provider) Name() string { return "hf" }

func (p *Provider) Chat(ctx context.Context, in llm.ChatRequest) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("%w: HF_API_KEY is empty", llm.ErrBackendUnavailable)
	}

	messages := make([]any, 0, 2)
	if in.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": in.System})
	}
	if len(in.Image) > 0 {
		mime := in.MIME
		if mime == "" {
			mime = util.ImageMIME(in.Image)
		}
		dataURL := util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(in.Image))
		messages = append(messages, map[string]any{
			"role": "user",
			"content": []any{
				map[string]any{"type": "text", "text": in.Prompt},
				map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			},
		})
	} else {
		messages = append(messages, map[string]any{"role": "user", "content": in.Prompt})
	}

	body := map[string]any{
		"model":    in.Model,
		"messages": messages,
	}
	if in.MaxTokens > 0 {
		body["max_tokens"] = in.MaxTokens
	}
	if in.Temperature > 0 {
		body["temperature"] = in.Temperature
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: hf %d: %s", llm.ErrBackendUnavailable, resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("%w: hf: bad JSON: %v", llm.ErrBackendUnavailable, err)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("%w: hf: no choices", llm.ErrEmptyResponse)
	}
	return raw.Choices[0].Message.Content, nil
}
