// Package config provides the configuration schema, loader, provider
// registry, and hot-reload watcher for the Sotto interview copilot.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ClassifierVariant selects how utterances are classified.
type ClassifierVariant string

const (
	// ClassifierRule uses the deterministic keyword rule chain. No network
	// dependency, zero latency.
	ClassifierRule ClassifierVariant = "rule"

	// ClassifierModel uses an LLM backend with a short rolling history.
	ClassifierModel ClassifierVariant = "model"
)

// IsValid reports whether v is a recognised classifier variant.
func (v ClassifierVariant) IsValid() bool {
	return v == ClassifierRule || v == ClassifierModel
}

// AnswerMode selects the length budget for generated answers.
type AnswerMode string

const (
	AnswerConcise  AnswerMode = "concise"
	AnswerDetailed AnswerMode = "detailed"
)

// IsValid reports whether m is a recognised answer mode.
func (m AnswerMode) IsValid() bool {
	return m == AnswerConcise || m == AnswerDetailed
}

// Config is the root configuration structure for Sotto.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Channels  []ChannelConfig `yaml:"channels"`
	Providers ProvidersConfig `yaml:"providers"`
	NLP       NLPConfig       `yaml:"nlp"`
	Answer    AnswerConfig    `yaml:"answer"`
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	// Level controls verbosity. Empty means "info".
	Level LogLevel `yaml:"level"`
}

// MetricsConfig holds the Prometheus scrape endpoint settings.
type MetricsConfig struct {
	// ListenAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}

// ChannelConfig describes a single audio capture channel and the speaker
// identity attached to everything it transcribes.
type ChannelConfig struct {
	// Name is a unique identifier for this channel (used in logs).
	Name string `yaml:"name"`

	// Speaker is the identity attached to every utterance from this channel
	// (e.g., "Me", "Interviewer").
	Speaker string `yaml:"speaker"`

	// Device selects the capture device by (substring of its) name. Empty
	// selects the system default input device.
	Device string `yaml:"device"`

	// SampleRate is the capture sample rate in Hz. Zero means the device
	// default.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count. Zero means the device default.
	Channels int `yaml:"channels"`

	// Respond marks the channel as answer-eligible. Transcript-only
	// channels (typically the candidate's own voice) leave this false.
	Respond bool `yaml:"respond"`

	// ScoreThreshold is the minimum question score that triggers
	// classification, in [0, 1]. Zero selects the built-in default.
	ScoreThreshold float64 `yaml:"score_threshold"`

	// Language is the recognition language tag. Empty lets the STT backend
	// decide.
	Language string `yaml:"language"`
}

// ProvidersConfig declares which backend to use for each pipeline stage.
type ProvidersConfig struct {
	STT        ProviderChain    `yaml:"stt"`
	LLM        ProviderChain    `yaml:"llm"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// ProviderChain is a primary backend plus ordered fallbacks, tried in
// sequence when the primary's circuit breaker is open.
type ProviderChain struct {
	Primary   ProviderEntry   `yaml:"primary"`
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Backend field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Backend selects the registered implementation (e.g., "whisper",
	// "deepgram", "groq", "openai").
	Backend string `yaml:"backend"`

	// APIKey is the authentication key for the backend's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default API endpoint. For the whisper
	// backend this is the inference server address and is required.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the backend (e.g., "nova-2",
	// "llama-3.3-70b-versatile").
	Model string `yaml:"model"`

	// Options holds backend-specific values not covered by the standard
	// fields above (e.g., whisper silence_window_ms).
	Options map[string]any `yaml:"options"`
}

// ClassifierConfig selects and tunes the utterance classifier.
type ClassifierConfig struct {
	// Variant picks the classifier implementation. Empty means "rule".
	Variant ClassifierVariant `yaml:"variant"`
}

// NLPConfig holds language-processing settings shared across channels.
type NLPConfig struct {
	// Vocabulary lists domain terms that bias recognition and drive
	// phonetic transcript correction (e.g., "Kubernetes", "goroutine").
	Vocabulary []string `yaml:"vocabulary"`
}

// AnswerConfig tunes answer generation.
type AnswerConfig struct {
	// Mode selects the answer length budget. Empty means "concise".
	Mode AnswerMode `yaml:"mode"`
}
