package config_test

import (
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/internal/config"
)

const fullYAML = `
logging:
  level: debug
metrics:
  listen_addr: ":9090"
channels:
  - name: interviewer
    speaker: Interviewer
    device: "BlackHole 2ch"
    sample_rate: 48000
    channels: 2
    respond: true
    score_threshold: 0.5
    language: en
  - name: me
    speaker: Me
    respond: false
providers:
  stt:
    primary:
      backend: deepgram
      api_key: dg-key
      model: nova-2
    fallbacks:
      - backend: whisper
        base_url: http://localhost:8080
        model: base.en
        options:
          silence_window_ms: 1200
  llm:
    primary:
      backend: groq
      api_key: gsk-key
      model: llama-3.3-70b-versatile
    fallbacks:
      - backend: ollama
        base_url: http://localhost:11434
        model: llama3
  classifier:
    variant: rule
nlp:
  vocabulary:
    - Kubernetes
    - goroutine
answer:
  mode: concise
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != config.LogDebug {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
	if cfg.Metrics.ListenAddr != ":9090" {
		t.Errorf("metrics.listen_addr = %q", cfg.Metrics.ListenAddr)
	}

	if len(cfg.Channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(cfg.Channels))
	}
	ch := cfg.Channels[0]
	if ch.Name != "interviewer" || ch.Speaker != "Interviewer" {
		t.Errorf("channel identity = %q/%q", ch.Name, ch.Speaker)
	}
	if ch.Device != "BlackHole 2ch" || ch.SampleRate != 48000 || ch.Channels != 2 {
		t.Errorf("channel capture settings = %q/%d/%d", ch.Device, ch.SampleRate, ch.Channels)
	}
	if !ch.Respond || ch.ScoreThreshold != 0.5 || ch.Language != "en" {
		t.Errorf("channel behaviour = %v/%v/%q", ch.Respond, ch.ScoreThreshold, ch.Language)
	}
	if cfg.Channels[1].Respond {
		t.Error("transcript-only channel parsed as respond")
	}

	stt := cfg.Providers.STT
	if stt.Primary.Backend != "deepgram" || stt.Primary.Model != "nova-2" {
		t.Errorf("stt primary = %+v", stt.Primary)
	}
	if len(stt.Fallbacks) != 1 || stt.Fallbacks[0].Backend != "whisper" {
		t.Fatalf("stt fallbacks = %+v", stt.Fallbacks)
	}
	if stt.Fallbacks[0].Options["silence_window_ms"] != 1200 {
		t.Errorf("whisper options = %v", stt.Fallbacks[0].Options)
	}

	llm := cfg.Providers.LLM
	if llm.Primary.Backend != "groq" || llm.Primary.Model != "llama-3.3-70b-versatile" {
		t.Errorf("llm primary = %+v", llm.Primary)
	}
	if len(llm.Fallbacks) != 1 || llm.Fallbacks[0].Backend != "ollama" {
		t.Errorf("llm fallbacks = %+v", llm.Fallbacks)
	}

	if cfg.Providers.Classifier.Variant != config.ClassifierRule {
		t.Errorf("classifier variant = %q", cfg.Providers.Classifier.Variant)
	}
	if len(cfg.NLP.Vocabulary) != 2 || cfg.NLP.Vocabulary[0] != "Kubernetes" {
		t.Errorf("vocabulary = %v", cfg.NLP.Vocabulary)
	}
	if cfg.Answer.Mode != config.AnswerConcise {
		t.Errorf("answer.mode = %q", cfg.Answer.Mode)
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Channels: []config.ChannelConfig{
				{Name: "interviewer", Speaker: "Interviewer", Respond: true},
				{Name: "me", Speaker: "Me"},
			},
			Providers: config.ProvidersConfig{
				STT: config.ProviderChain{Primary: config.ProviderEntry{Backend: "deepgram", APIKey: "k"}},
				LLM: config.ProviderChain{Primary: config.ProviderEntry{Backend: "groq", APIKey: "k"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid config passes",
			mutate: func(*config.Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "no channels",
			mutate:  func(c *config.Config) { c.Channels = nil },
			wantErr: "at least one capture channel",
		},
		{
			name:    "missing channel name",
			mutate:  func(c *config.Config) { c.Channels[0].Name = "" },
			wantErr: "channels[0].name is required",
		},
		{
			name:    "missing speaker",
			mutate:  func(c *config.Config) { c.Channels[1].Speaker = "" },
			wantErr: "channels[1].speaker is required",
		},
		{
			name:    "duplicate channel name",
			mutate:  func(c *config.Config) { c.Channels[1].Name = "interviewer" },
			wantErr: "duplicate of channels[0]",
		},
		{
			name:    "duplicate speaker",
			mutate:  func(c *config.Config) { c.Channels[1].Speaker = "Interviewer" },
			wantErr: "duplicate of channels[0]",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *config.Config) { c.Channels[0].ScoreThreshold = 1.5 },
			wantErr: "score_threshold",
		},
		{
			name:    "negative sample rate",
			mutate:  func(c *config.Config) { c.Channels[0].SampleRate = -1 },
			wantErr: "sample_rate",
		},
		{
			name:    "missing stt backend",
			mutate:  func(c *config.Config) { c.Providers.STT.Primary.Backend = "" },
			wantErr: "providers.stt.primary.backend is required",
		},
		{
			name: "respond channel without llm",
			mutate: func(c *config.Config) {
				c.Providers.LLM.Primary.Backend = ""
			},
			wantErr: "providers.llm.primary.backend is required",
		},
		{
			name: "model classifier without llm",
			mutate: func(c *config.Config) {
				c.Channels[0].Respond = false
				c.Providers.LLM.Primary.Backend = ""
				c.Providers.Classifier.Variant = config.ClassifierModel
			},
			wantErr: "requires providers.llm",
		},
		{
			name:    "bad classifier variant",
			mutate:  func(c *config.Config) { c.Providers.Classifier.Variant = "neural" },
			wantErr: "classifier.variant",
		},
		{
			name:    "bad answer mode",
			mutate:  func(c *config.Config) { c.Answer.Mode = "verbose" },
			wantErr: "answer.mode",
		},
		{
			name: "whisper without base_url",
			mutate: func(c *config.Config) {
				c.Providers.STT.Primary = config.ProviderEntry{Backend: "whisper"}
			},
			wantErr: "whisper backend requires base_url",
		},
		{
			name: "deepgram without api_key",
			mutate: func(c *config.Config) {
				c.Providers.STT.Primary = config.ProviderEntry{Backend: "deepgram"}
			},
			wantErr: "deepgram backend requires api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	cfg := &config.Config{
		Logging: config.LoggingConfig{Level: "bananas"},
		Channels: []config.ChannelConfig{
			{Speaker: "Interviewer", ScoreThreshold: 2},
		},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"logging.level", "channels[0].name", "score_threshold", "providers.stt"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}
