// Command sotto is the interview copilot: it captures the configured audio
// channels, transcribes them, and streams suggested answers for the
// interviewer's questions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/health"
	"github.com/sotto-ai/sotto/internal/nlp"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/resilience"
	"github.com/sotto-ai/sotto/internal/session"
	paudio "github.com/sotto-ai/sotto/pkg/audio/portaudio"
	"github.com/sotto-ai/sotto/pkg/provider/llm"
	"github.com/sotto-ai/sotto/pkg/provider/llm/anyllm"
	oaillm "github.com/sotto-ai/sotto/pkg/provider/llm/openai"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	"github.com/sotto-ai/sotto/pkg/provider/stt/deepgram"
	"github.com/sotto-ai/sotto/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list input-capable audio devices and exit")
	flag.Parse()

	if *listDevices {
		return printInputDevices()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sotto: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sotto: %v\n", err)
		}
		return 1
	}

	logger, logLevel := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	slog.Info("sotto starting",
		"config", *configPath,
		"channels", len(cfg.Channels),
		"log_level", cfg.Logging.Level,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "sotto",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	if cfg.Metrics.ListenAddr != "" {
		go serveMetrics(cfg.Metrics.ListenAddr, metrics, readinessCheckers(cfg))
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	sttProvider, err := buildSTT(cfg.Providers.STT, reg)
	if err != nil {
		slog.Error("failed to build STT provider", "err", err)
		return 1
	}

	var llmProvider llm.Provider
	if cfg.Providers.LLM.Primary.Backend != "" {
		llmProvider, err = buildLLM(cfg.Providers.LLM, reg)
		if err != nil {
			slog.Error("failed to build LLM provider", "err", err)
			return 1
		}
	}

	var classifier nlp.Classifier = &nlp.RuleClassifier{}
	if cfg.Providers.Classifier.Variant == config.ClassifierModel {
		classifier = nlp.NewModelClassifier(llmProvider, logger)
	}

	// ── Session ───────────────────────────────────────────────────────────────
	printer := newAnswerPrinter()
	hooks := session.Hooks{
		OnPartial: func(speaker, text string) {
			slog.Debug("partial", "speaker", speaker, "text", text)
		},
		OnFinal: func(speaker, text string) {
			fmt.Printf("\n[%s] %s\n", speaker, text)
		},
		OnAnswer: printer.print,
	}

	orch := session.NewOrchestrator(session.OrchestratorConfig{
		Classifier: classifier,
		Generator:  answer.NewGenerator(llmProvider, logger),
		Mode:       answer.Mode(cfg.Answer.Mode),
		Hooks:      hooks,
		Metrics:    metrics,
		Logger:     logger,
	})

	pipelines := make([]*session.Pipeline, 0, len(cfg.Channels))
	pipelineByName := make(map[string]*session.Pipeline, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		src := paudio.New(paudio.Config{
			Device:     ch.Device,
			SampleRate: ch.SampleRate,
			Channels:   ch.Channels,
		})
		p, err := session.NewPipeline(session.PipelineConfig{
			Speaker:        ch.Speaker,
			Respond:        ch.Respond,
			ScoreThreshold: ch.ScoreThreshold,
			Source:         src,
			STT:            sttProvider,
			Vocabulary:     cfg.NLP.Vocabulary,
			Language:       ch.Language,
			OnPartial:      hooks.OnPartial,
			Metrics:        metrics,
			Logger:         logger,
		})
		if err != nil {
			slog.Error("failed to build pipeline", "channel", ch.Name, "err", err)
			return 1
		}
		pipelines = append(pipelines, p)
		pipelineByName[ch.Name] = p
	}

	manager, err := session.NewManager(session.ManagerConfig{
		Pipelines:    pipelines,
		Orchestrator: orch,
		Metrics:      metrics,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("failed to build session manager", "err", err)
		return 1
	}

	// Hot reload: safe knobs (log level, vocabulary, answer mode, score
	// thresholds) apply to the running session; anything touching devices or
	// provider connections still needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigUpdate(config.Diff(old, new), new, logLevel, orch, pipelineByName)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	if err := manager.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}

	slog.Info("session running — press Ctrl+C to stop")
	<-ctx.Done()

	slog.Info("shutdown signal received, stopping…")
	manager.Stop()
	slog.Info("goodbye")
	return 0
}

// applyConfigUpdate pushes the hot-reloadable parts of a config edit into the
// running session. Channel additions and removals are ignored here; they need
// device and recognizer lifecycle.
func applyConfigUpdate(d config.ConfigDiff, cfg *config.Config, level *slog.LevelVar, orch *session.Orchestrator, pipelines map[string]*session.Pipeline) {
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.VocabularyChanged {
		for _, p := range pipelines {
			p.SetVocabulary(cfg.NLP.Vocabulary)
		}
		slog.Info("vocabulary updated", "terms", len(cfg.NLP.Vocabulary))
	}
	if d.AnswerModeChanged {
		orch.SetMode(answer.Mode(d.NewAnswerMode))
		slog.Info("answer mode updated", "mode", d.NewAnswerMode)
	}
	for _, cc := range d.ChannelChanges {
		p, ok := pipelines[cc.Name]
		if !ok || !cc.ThresholdChanged {
			continue
		}
		p.SetScoreThreshold(cc.NewThreshold)
		slog.Info("score threshold updated", "channel", cc.Name, "threshold", cc.NewThreshold)
	}
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires all built-in backend factories into reg.
func registerBuiltinBackends(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if ms := optInt(entry.Options, "silence_window_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceWindow(time.Duration(ms)*time.Millisecond))
		}
		if ms := optInt(entry.Options, "max_utterance_ms"); ms > 0 {
			opts = append(opts, whisper.WithMaxUtterance(time.Duration(ms)*time.Millisecond))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// groq, anthropic, and mistral share the any-llm pattern: optional APIKey
	// plus optional BaseURL.
	for _, backendName := range []string{"groq", "anthropic", "mistral"} {
		reg.RegisterLLM(backendName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backendName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// openai goes through the official SDK rather than any-llm.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildSTT creates the primary STT backend and wraps it, together with any
// fallbacks, in a circuit-breaking failover.
func buildSTT(chain config.ProviderChain, reg *config.Registry) (stt.Provider, error) {
	primary, err := reg.CreateSTT(chain.Primary)
	if err != nil {
		return nil, fmt.Errorf("create stt backend %q: %w", chain.Primary.Backend, err)
	}
	slog.Info("backend created", "kind", "stt", "name", chain.Primary.Backend)

	failover := resilience.NewSTTFailover(primary, chain.Primary.Backend, resilience.FallbackConfig{})
	for _, entry := range chain.Fallbacks {
		fb, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Backend, err)
		}
		failover.AddFallback(entry.Backend, fb)
		slog.Info("backend created", "kind", "stt", "name", entry.Backend, "role", "fallback")
	}
	return failover, nil
}

// buildLLM mirrors buildSTT for the LLM chain.
func buildLLM(chain config.ProviderChain, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(chain.Primary)
	if err != nil {
		return nil, fmt.Errorf("create llm backend %q: %w", chain.Primary.Backend, err)
	}
	slog.Info("backend created", "kind", "llm", "name", chain.Primary.Backend, "model", chain.Primary.Model)

	failover := resilience.NewLLMFailover(primary, chain.Primary.Backend, resilience.FallbackConfig{})
	for _, entry := range chain.Fallbacks {
		fb, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", entry.Backend, err)
		}
		failover.AddFallback(entry.Backend, fb)
		slog.Info("backend created", "kind", "llm", "name", entry.Backend, "model", entry.Model, "role", "fallback")
	}
	return failover, nil
}

// ── Terminal output ───────────────────────────────────────────────────────────

// answerPrinter renders a streamed answer on one growing line. Each call
// carries the accumulated text, so only the new suffix is written.
type answerPrinter struct {
	last string
}

func newAnswerPrinter() *answerPrinter {
	return &answerPrinter{}
}

func (a *answerPrinter) print(text string) {
	if !strings.HasPrefix(text, a.last) {
		// New answer started.
		fmt.Print("\n>>> ")
		a.last = ""
	}
	fmt.Print(text[len(a.last):])
	a.last = text
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

func serveMetrics(addr string, m *observe.Metrics, checkers []health.Checker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)
	handler := observe.Middleware(m)(mux)

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, handler); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics endpoint failed", "err", err)
	}
}

// readinessCheckers probes the locally hosted backends. Hosted APIs (deepgram,
// groq, openai, …) are deliberately excluded: probing them burns quota and
// their availability is surfaced by the failover metrics instead.
func readinessCheckers(cfg *config.Config) []health.Checker {
	var checkers []health.Checker
	add := func(name, baseURL string) {
		if baseURL == "" {
			return
		}
		checkers = append(checkers, health.Checker{Name: name, Check: urlCheck(baseURL)})
	}
	for _, entry := range append([]config.ProviderEntry{cfg.Providers.STT.Primary}, cfg.Providers.STT.Fallbacks...) {
		if entry.Backend == "whisper" {
			add("stt/whisper", entry.BaseURL)
		}
	}
	for _, entry := range append([]config.ProviderEntry{cfg.Providers.LLM.Primary}, cfg.Providers.LLM.Fallbacks...) {
		if entry.Backend == "ollama" {
			add("llm/ollama", entry.BaseURL)
		}
	}
	return checkers
}

// urlCheck reports whether the server behind baseURL answers HTTP at all. Any
// response counts; only transport-level failures mark the check unhealthy.
func urlCheck(baseURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Sotto — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printBackend("STT", cfg.Providers.STT.Primary.Backend, cfg.Providers.STT.Primary.Model)
	printBackend("LLM", cfg.Providers.LLM.Primary.Backend, cfg.Providers.LLM.Primary.Model)
	variant := cfg.Providers.Classifier.Variant
	if variant == "" {
		variant = config.ClassifierRule
	}
	fmt.Printf("║  Classifier      : %-19s║\n", variant)
	for _, ch := range cfg.Channels {
		role := "transcript"
		if ch.Respond {
			role = "respond"
		}
		fmt.Printf("║  Channel %-8s: %-19s║\n", ch.Speaker, role)
	}
	fmt.Printf("║  Vocabulary      : %-19d║\n", len(cfg.NLP.Vocabulary))
	if cfg.Metrics.ListenAddr != "" {
		fmt.Printf("║  Metrics         : %-19s║\n", cfg.Metrics.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printBackend(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s║\n", kind, value)
}

// ── Device listing ────────────────────────────────────────────────────────────

func printInputDevices() int {
	devices, err := paudio.ListInputDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sotto: list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no input-capable audio devices found")
		return 0
	}
	fmt.Println("input devices:")
	for _, d := range devices {
		fmt.Printf("  %-40s %d ch @ %.0f Hz\n", d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// ── Logger ────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar adjusts the
// level at runtime when the config file changes.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a backend Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a backend Options map. YAML decodes
// bare numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	n, _ := opts[key].(int)
	return n
}
