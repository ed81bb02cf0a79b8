package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiOption adjusts the client config of every call.
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at another Gemini API host.
func WithBaseURL(url string) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPOptions.BaseURL = url
	}
}

// WithHTTPClient sets the transport used for generation calls.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(cc *genai.ClientConfig) {
		cc.HTTPClient = c
	}
}

// Gemini generates through the Gemini API.
type Gemini struct {
	model string
	opts  []GeminiOption
}

func NewGemini(model string, opts ...GeminiOption) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{model: strings.TrimPrefix(model, "models/"), opts: opts}
}

func (g *Gemini) Generate(ctx context.Context, credential string, req Request) (string, error) {
	cc := &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range g.opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return "", fmt.Errorf("unable to create Gemini client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenai(req.Schema),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func toGenai(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Format:      s.Format,
		Description: s.Description,
		Enum:        s.Enum,
		Items:       toGenai(s.Items),
		Required:    s.Required,
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenai(prop)
		}
	}
	return out
}
