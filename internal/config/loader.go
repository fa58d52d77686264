package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known backend names per provider kind.
// Used by [Validate] to warn about unrecognised backend names.
var ValidBackendNames = map[string][]string{
	"stt": {"whisper", "deepgram"},
	"llm": {"groq", "openai", "anthropic", "ollama", "mistral"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills empty api_key fields
// from the environment, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvKeys(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envAPIKeys maps backend names to the environment variable consulted when
// the YAML entry leaves api_key empty.
var envAPIKeys = map[string]string{
	"deepgram":  "DEEPGRAM_API_KEY",
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"mistral":   "MISTRAL_API_KEY",
}

// applyEnvKeys fills empty api_key fields from the environment so secrets
// can stay out of config files. A key present in the YAML always wins.
func applyEnvKeys(cfg *Config) {
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" {
			return
		}
		if env, ok := envAPIKeys[e.Backend]; ok {
			e.APIKey = os.Getenv(env)
		}
	}
	fill(&cfg.Providers.STT.Primary)
	for i := range cfg.Providers.STT.Fallbacks {
		fill(&cfg.Providers.STT.Fallbacks[i])
	}
	fill(&cfg.Providers.LLM.Primary)
	for i := range cfg.Providers.LLM.Fallbacks {
		fill(&cfg.Providers.LLM.Fallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Logging.Level != "" && !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}

	if len(cfg.Channels) == 0 {
		errs = append(errs, errors.New("channels: at least one capture channel is required"))
	}

	// Backend name validation — warn for unknown backends; the registry
	// rejects them hard at wiring time.
	validateBackendName("stt", cfg.Providers.STT.Primary.Backend)
	for _, e := range cfg.Providers.STT.Fallbacks {
		validateBackendName("stt", e.Backend)
	}
	validateBackendName("llm", cfg.Providers.LLM.Primary.Backend)
	for _, e := range cfg.Providers.LLM.Fallbacks {
		validateBackendName("llm", e.Backend)
	}

	if cfg.Providers.STT.Primary.Backend == "" {
		errs = append(errs, errors.New("providers.stt.primary.backend is required"))
	}

	namesSeen := make(map[string]int, len(cfg.Channels))
	speakersSeen := make(map[string]int, len(cfg.Channels))
	anyRespond := false

	for i, ch := range cfg.Channels {
		prefix := fmt.Sprintf("channels[%d]", i)
		if ch.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := namesSeen[ch.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of channels[%d]", prefix, ch.Name, prev))
			}
			namesSeen[ch.Name] = i
		}
		if ch.Speaker == "" {
			errs = append(errs, fmt.Errorf("%s.speaker is required", prefix))
		} else {
			if prev, ok := speakersSeen[ch.Speaker]; ok {
				errs = append(errs, fmt.Errorf("%s.speaker %q is a duplicate of channels[%d]", prefix, ch.Speaker, prev))
			}
			speakersSeen[ch.Speaker] = i
		}
		if ch.SampleRate < 0 {
			errs = append(errs, fmt.Errorf("%s.sample_rate %d must not be negative", prefix, ch.SampleRate))
		}
		if ch.Channels < 0 {
			errs = append(errs, fmt.Errorf("%s.channels %d must not be negative", prefix, ch.Channels))
		}
		if ch.ScoreThreshold < 0 || ch.ScoreThreshold > 1 {
			errs = append(errs, fmt.Errorf("%s.score_threshold %.2f is out of range [0, 1]", prefix, ch.ScoreThreshold))
		}
		if ch.Respond {
			anyRespond = true
		}
	}

	// Respond channels need an LLM for generation; the model classifier
	// needs one regardless.
	if anyRespond && cfg.Providers.LLM.Primary.Backend == "" {
		errs = append(errs, errors.New("providers.llm.primary.backend is required when any channel has respond: true"))
	}
	if cfg.Providers.Classifier.Variant == ClassifierModel && cfg.Providers.LLM.Primary.Backend == "" {
		errs = append(errs, errors.New("providers.classifier.variant \"model\" requires providers.llm to be configured"))
	}
	if !anyRespond && len(cfg.Channels) > 0 {
		slog.Warn("no channel has respond: true; running in transcript-only mode")
	}

	if cfg.Providers.Classifier.Variant != "" && !cfg.Providers.Classifier.Variant.IsValid() {
		errs = append(errs, fmt.Errorf("providers.classifier.variant %q is invalid; valid values: rule, model", cfg.Providers.Classifier.Variant))
	}
	if cfg.Answer.Mode != "" && !cfg.Answer.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("answer.mode %q is invalid; valid values: concise, detailed", cfg.Answer.Mode))
	}

	// Backend-specific requirements.
	for _, e := range append([]ProviderEntry{cfg.Providers.STT.Primary}, cfg.Providers.STT.Fallbacks...) {
		switch e.Backend {
		case "whisper":
			if e.BaseURL == "" {
				errs = append(errs, errors.New("providers.stt: whisper backend requires base_url (the inference server address)"))
			}
		case "deepgram":
			if e.APIKey == "" {
				errs = append(errs, errors.New("providers.stt: deepgram backend requires api_key (or DEEPGRAM_API_KEY in the environment)"))
			}
		}
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given kind.
func validateBackendName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name — may be a typo or third-party backend",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
