package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/olive/internal/rowstore"
	"github.com/JonMunkholm/olive/internal/schema"
)

func TestBuildPromptEmbedsSchemaRowsAndQuestion(t *testing.T) {
	row := rowstore.NewRow([]string{"id", "name"}, []any{json.Number("1"), "Ann"})
	sample := schema.Sample{
		Columns: schema.InferColumns(row),
		Rows:    []rowstore.Row{row},
	}

	prompt := BuildPrompt(sample, "show all", "t")

	for _, want := range []string{
		`Here is the schema for the "t" table:` + "\nid: number, name: string\n",
		"\"id\": 1,\n    \"name\": \"Ann\"",
		`User question: "show all"`,
		"- Use only the columns from the schema above.",
		"- For value-based queries, always use a WHERE clause.",
		"use ILIKE and wrap the value in % if partial.",
		"- For multiple conditions, use AND.",
		"- Use LIMIT if the user asks for a specific number of results.",
		"- Never return all rows unless the user explicitly asks for all.",
		"- Never hallucinate columns; only use columns from the schema.",
		`Return ONLY a valid SQL SELECT statement for the "t" table, nothing else.`,
		"Do not include explanations, comments, or markdown/code block formatting.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q\n%s", want, prompt)
		}
	}

	if again := BuildPrompt(sample, "show all", "t"); again != prompt {
		t.Fatal("BuildPrompt is not deterministic")
	}
}

func TestBuildPromptEmbedsQuestionVerbatim(t *testing.T) {
	row := rowstore.NewRow([]string{"name"}, []any{"Ann"})
	sample := schema.Sample{Columns: schema.InferColumns(row), Rows: []rowstore.Row{row}}
	question := "rows where name is \"O'Neil\"\nand city is Zürich"

	prompt := BuildPrompt(sample, question, `my "t"`)

	if !strings.Contains(prompt, `User question: "`+question+`"`) {
		t.Fatalf("prompt does not embed question verbatim:\n%s", prompt)
	}
	if !strings.Contains(prompt, `Here is the schema for the "my "t"" table:`) {
		t.Fatalf("prompt does not embed table verbatim:\n%s", prompt)
	}
	if strings.Contains(prompt, `\"`) || strings.Contains(prompt, `\n`) {
		t.Fatalf("prompt contains escape sequences:\n%s", prompt)
	}
}

func TestOpenAICompleteSendsFixedParameters(t *testing.T) {
	var got openAIRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  SELECT 1  "}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", "gpt-test", srv.URL+"/v1/")
	out, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Text != "SELECT 1" {
		t.Fatalf("Text = %q", out.Text)
	}
	if out.Tokens != 42 {
		t.Fatalf("Tokens = %d", out.Tokens)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.MaxTokens != DefaultMaxTokens || got.Temperature != 0 || got.Model != "gpt-test" {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "hello" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestOpenAICompleteReturnsUpstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("k", "m", srv.URL)
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err == nil || err.Error() != "You exceeded your current quota" {
		t.Fatalf("error = %v", err)
	}
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("k", "m", srv.URL).Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestAnthropicCompleteReturnsFirstTextBlock(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ak" || r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Errorf("headers = %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"thinking","text":""},{"type":"text","text":"SELECT 2"}],"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("ak", "claude-test", srv.URL)
	out, err := p.Complete(context.Background(), CompletionRequest{Prompt: "q", MaxTokens: 99})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Text != "SELECT 2" || out.Tokens != 7 {
		t.Fatalf("completion = %+v", out)
	}
	if got.MaxTokens != 99 || got.Temperature == nil || *got.Temperature != 0 {
		t.Fatalf("request = %+v", got)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := NewProvider(Config{Provider: "bard", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	p, err := NewProvider(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if p.Name() != "openai" || DisplayName(p) != "OpenAI" {
		t.Fatalf("provider = %s", p.Name())
	}
	if op := p.(*OpenAIProvider); op.model != "gpt-4-1106-preview" {
		t.Fatalf("model = %q", op.model)
	}
}

func TestConfigFromLookupFallsBackToOpenAIKey(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-1", "LLM_MAX_TOKENS": "200", "LLM_PROVIDER": " OpenAI "}
	cfg := ConfigFromLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.APIKey != "sk-1" || cfg.MaxTokens != 200 || cfg.Provider != "openai" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
