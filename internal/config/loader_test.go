package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/internal/config"
)

const minimalYAML = `
providers:
  stt:
    primary:
      backend: whisper
      base_url: http://localhost:8080
channels:
  - name: interviewer
    speaker: Interviewer
`

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, minimalYAML)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.Primary.Backend != "whisper" {
		t.Errorf("stt backend = %q", cfg.Providers.STT.Primary.Backend)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error = %v, want open failure", err)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	yaml := minimalYAML + `
transcription:
  engine: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
	if !strings.Contains(err.Error(), "decode yaml") {
		t.Errorf("error = %v, want decode failure", err)
	}
}

func TestLoadFromReader_RejectsMalformedYAML(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("channels: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestLoadFromReader_ValidationFailureSurfaces(t *testing.T) {
	yaml := `
providers:
  stt:
    primary:
      backend: deepgram
channels:
  - name: interviewer
    speaker: Interviewer
`
	t.Setenv("DEEPGRAM_API_KEY", "")

	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "deepgram backend requires api_key") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadFromReader_APIKeysFromEnvironment(t *testing.T) {
	yaml := `
providers:
  stt:
    primary:
      backend: deepgram
  llm:
    primary:
      backend: groq
      api_key: gsk-from-yaml
    fallbacks:
      - backend: mistral
channels:
  - name: interviewer
    speaker: Interviewer
`
	t.Setenv("DEEPGRAM_API_KEY", "dg-from-env")
	t.Setenv("GROQ_API_KEY", "gsk-from-env")
	t.Setenv("MISTRAL_API_KEY", "mst-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Providers.STT.Primary.APIKey; got != "dg-from-env" {
		t.Errorf("stt api key = %q, want the environment value", got)
	}
	// A key present in the YAML wins over the environment.
	if got := cfg.Providers.LLM.Primary.APIKey; got != "gsk-from-yaml" {
		t.Errorf("llm api key = %q, want the yaml value", got)
	}
	if got := cfg.Providers.LLM.Fallbacks[0].APIKey; got != "mst-from-env" {
		t.Errorf("llm fallback api key = %q, want the environment value", got)
	}
}

func TestLoadFromReader_OmittedOptionalSectionsDefaultToZero(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "" {
		t.Errorf("logging.level = %q, want empty", cfg.Logging.Level)
	}
	if cfg.Metrics.ListenAddr != "" {
		t.Errorf("metrics.listen_addr = %q, want empty", cfg.Metrics.ListenAddr)
	}
	if cfg.Answer.Mode != "" {
		t.Errorf("answer.mode = %q, want empty", cfg.Answer.Mode)
	}
	if cfg.Channels[0].ScoreThreshold != 0 {
		t.Errorf("score_threshold = %v, want 0 (built-in default applies downstream)", cfg.Channels[0].ScoreThreshold)
	}
}
