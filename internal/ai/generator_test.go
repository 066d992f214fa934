package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/repoviral/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(srv *httptest.Server) *Generator {
	g := NewGenerator(&config.Config{OpenAIKey: "sk-test", OpenAIModel: "gpt-4o"})
	g.apiBase = srv.URL
	return g
}

func completionJSON(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "# Widget readme")

		w.Write([]byte(completionJSON("### TWITTER THREAD\ntweets\n### LINKEDIN POST\npost\n### BLOG INTRO\nblog")))
	}))
	defer srv.Close()

	content, err := newTestGenerator(srv).Generate(context.Background(), "# Widget readme", ToneEducator, false)
	require.NoError(t, err)
	assert.Equal(t, "tweets", content.TwitterThread)
	assert.Equal(t, "post", content.LinkedInPost)
	assert.Equal(t, "blog", content.BlogIntro)
	assert.Empty(t, content.SlideDeck)
}

func TestGenerateDeepRequestsSlideDeck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[0].Content, headerSlides)

		w.Write([]byte(completionJSON("### SLIDE DECK\nSlide 1: Hello")))
	}))
	defer srv.Close()

	content, err := newTestGenerator(srv).Generate(context.Background(), "evidence", ToneSeniorDev, true)
	require.NoError(t, err)
	assert.Equal(t, "Slide 1: Hello", content.SlideDeck)
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "Rate limit exceeded"}}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv).Generate(context.Background(), "ctx", ToneEducator, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit exceeded")
}

func TestGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := newTestGenerator(srv).Generate(context.Background(), "ctx", ToneEducator, false)
	assert.Error(t, err)
}

func TestGenerateMissingKey(t *testing.T) {
	g := NewGenerator(&config.Config{OpenAIModel: "gpt-4o"})
	_, err := g.Generate(context.Background(), "ctx", ToneEducator, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
