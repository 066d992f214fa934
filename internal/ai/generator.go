package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/repoviral/backend/internal/config"
)

// GeneratedContent is the structured result of one generation call.
// SlideDeck is only produced for deep scans.
type GeneratedContent struct {
	TwitterThread string `json:"twitter_thread"`
	LinkedInPost  string `json:"linkedin_post"`
	BlogIntro     string `json:"blog_intro"`
	SlideDeck     string `json:"slide_deck,omitempty"`
}

// Generator calls the OpenAI chat completions API and splits the raw
// completion into the per-platform sections.
type Generator struct {
	apiBase    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGenerator(cfg *config.Config) *Generator {
	return &Generator{
		apiBase: "https://api.openai.com",
		apiKey:  cfg.OpenAIKey,
		model:   cfg.OpenAIModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate produces content for the given repository context. The context
// string is either a raw README (shallow path) or an evidence prompt built
// by DeepPrompt. Deep generations additionally request a slide deck.
func (g *Generator) Generate(ctx context.Context, repoContext, tone string, deep bool) (*GeneratedContent, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not configured")
	}

	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(tone, deep)},
			{Role: "user", Content: "Here is the repository context:\n" + repoContext},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiBase+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to contact OpenAI: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("invalid response from OpenAI: %w", err)
	}
	if completion.Error != nil {
		return nil, fmt.Errorf("OpenAI error: %s", completion.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI returned status %d", resp.StatusCode)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return parseResponse(completion.Choices[0].Message.Content), nil
}
