package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pressline/internal/config"
	"pressline/internal/services"
	"pressline/internal/services/generator"
	"pressline/internal/topic"
)

func testConfig(url string) config.Generator {
	return config.Generator{
		APIKey:         "test-key",
		BaseURL:        url,
		Model:          "test-model",
		TimeoutSeconds: 5,
	}
}

func completionBody(markdown string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": markdown}, "finish_reason": "stop"},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func article(words int) string {
	var b strings.Builder
	b.WriteString("# Brewing Guide\n\n")
	for i := 0; i < words; i++ {
		b.WriteString("word ")
	}
	return b.String()
}

func TestGenerateReturnsDraft(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request: %#v", req)
		}
		fmt.Fprint(w, completionBody(article(1000)))
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5, generator.WithHTTPClient(server.Client()))
	draft, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 1000})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if draft.Title != "Brewing Guide" {
		t.Fatalf("expected title from heading, got %q", draft.Title)
	}
	if strings.HasPrefix(draft.Body, "#") {
		t.Fatalf("expected leading title stripped, body starts %q", draft.Body[:20])
	}
	if draft.WordCount == 0 {
		t.Fatal("expected word count")
	}
}

func TestGenerateRegeneratesWhenFarFromTarget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, completionBody(article(200)))
			return
		}
		fmt.Fprint(w, completionBody(article(990)))
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5)
	draft, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 1000})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one regeneration, got %d calls", calls)
	}
	if draft.WordCount < 900 {
		t.Fatalf("expected the closer draft, got %d words", draft.WordCount)
	}
}

func TestGenerateAcceptsDraftWithinMargin(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, completionBody(article(980)))
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5)
	if _, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 1000}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call within margin, got %d", calls)
	}
}

func TestGenerateClassifiesRateLimitAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5)
	_, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 100})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGenerateClassifiesBadRequestAsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5)
	_, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 100})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestGenerateTreatsRefusalAsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"refusal":"cannot write this"}}]}`)
	}))
	defer server.Close()

	client := generator.NewClient(testConfig(server.URL), 5)
	_, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 100})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.APIKey = ""
	client := generator.NewClient(cfg, 5)
	_, err := client.Generate(context.Background(), topic.Record{Topic: "Brewing", TargetWordCount: 100})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestBuildPromptDistributesWordBudget(t *testing.T) {
	prompt := generator.BuildPrompt(topic.Record{
		Topic:           "Coffee",
		TargetWordCount: 1000,
		Outline:         []string{"History", "Technique"},
	})
	for _, fragment := range []string{"100", "700", "History", "Technique"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}
