package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"study-bot/api/internal/llm"
)

const DefaultModel = "gemini-2.5-flash"

type Provider struct {
	cl *genai.Client
}

// New открывает один клиент на всё время жизни процесса; закрывать через Close.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Provider{cl: cl}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Close() error { return p.cl.Close() }

func (p *Provider) Chat(ctx context.Context, in llm.ChatRequest) (string, error) {
	name := strings.TrimSpace(in.Model)
	if name == "" {
		name = DefaultModel
	}
	m := p.cl.GenerativeModel(name)
	if m == nil {
		return "", fmt.Errorf("%w: gemini: model is nil", llm.ErrBackendUnavailable)
	}
	cfg := genai.GenerationConfig{}
	if in.Temperature > 0 {
		cfg.Temperature = ptrFloat32(float32(in.Temperature))
	}
	if in.MaxTokens > 0 {
		cfg.MaxOutputTokens = ptrInt32(int32(in.MaxTokens))
	}
	m.GenerationConfig = cfg
	if in.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(in.System)}}
	}

	parts := []genai.Part{genai.Text(in.Prompt)}
	if len(in.Image) > 0 {
		parts = append(parts, genai.Blob{MIMEType: in.MIME, Data: in.Image})
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", llm.ErrBackendUnavailable, err)
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return "", fmt.Errorf("%w: gemini: no candidates", llm.ErrEmptyResponse)
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
