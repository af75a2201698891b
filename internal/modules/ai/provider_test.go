package ai

import (
	"testing"

	appcfg "github.com/interviewlab/core/internal/config"
)

func TestUnmarshalAIJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain", `{"summary":"ok"}`, "ok", false},
		{"fenced", "```json\n{\"summary\":\"ok\"}\n```", "ok", false},
		{"prose around", `Here you go: {"summary":"ok"} thanks`, "ok", false},
		{"garbage", `not json`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Summary string `json:"summary"`
			}
			err := unmarshalAIJSON(tt.raw, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if out.Summary != tt.want {
				t.Fatalf("summary = %q", out.Summary)
			}
		})
	}
}

func TestSelectAIProvider(t *testing.T) {
	cfg := appcfg.AIConfig{Providers: []appcfg.AIProvider{
		{ID: "disabled", Enabled: false, DefaultModel: "a"},
		{ID: "first", Enabled: true, DefaultModel: "b"},
		{ID: "second", Enabled: true, DefaultModel: "c"},
	}}

	if p := selectAIProvider(cfg, nil); p == nil || p.ID != "first" {
		t.Fatalf("default = %+v", p)
	}
	p := selectAIProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "second", Model: "override"})
	if p == nil || p.ID != "second" || p.DefaultModel != "override" {
		t.Fatalf("assigned = %+v", p)
	}
	if cfg.Providers[2].DefaultModel != "c" {
		t.Fatal("selection mutated config")
	}
	if p := selectAIProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "disabled"}); p == nil || p.ID != "first" {
		t.Fatalf("disabled assignment = %+v", p)
	}
	if p := selectAIProvider(appcfg.AIConfig{}, nil); p != nil {
		t.Fatalf("empty = %+v", p)
	}
}

func TestNormalizeEndpoints(t *testing.T) {
	tests := []struct {
		fn   func(string) string
		in   string
		want string
	}{
		{normalizeOpenAIBaseURL, "", ""},
		{normalizeOpenAIBaseURL, "https://api.example.com", "https://api.example.com/v1"},
		{normalizeOpenAIBaseURL, "https://api.example.com/v1/", "https://api.example.com/v1"},
		{normalizeOpenAICompatibleEndpoint, "", "https://api.openai.com"},
		{normalizeOpenAICompatibleEndpoint, "http://localhost:8080/v1/", "http://localhost:8080"},
		{normalizeOpenAICompatibleEndpoint, "http://localhost:8080/proxy", "http://localhost:8080/proxy"},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProviderTypes(t *testing.T) {
	if !isOpenAICompatibleProviderType(" OpenAI_Compatible ") {
		t.Error("OpenAI_Compatible not detected")
	}
	if !isAnthropicProviderType("Anthropic") || isAnthropicProviderType("openai") {
		t.Error("anthropic detection")
	}
	if !isOpenRouterProviderType("OpenRouter") {
		t.Error("openrouter detection")
	}
}

func TestClampScore(t *testing.T) {
	for in, want := range map[float64]int{-5: 0, 0: 0, 49.6: 50, 100: 100, 250: 100} {
		if got := clampScore(in); got != want {
			t.Errorf("clampScore(%v) = %d, want %d", in, got, want)
		}
	}
}
