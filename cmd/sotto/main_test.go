package main

import (
	"log/slog"
	"testing"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/nlp"
	"github.com/sotto-ai/sotto/internal/session"
	"github.com/sotto-ai/sotto/pkg/audio"
	audiomock "github.com/sotto-ai/sotto/pkg/audio/mock"
	llmmock "github.com/sotto-ai/sotto/pkg/provider/llm/mock"
	sttmock "github.com/sotto-ai/sotto/pkg/provider/stt/mock"
)

func TestApplyConfigUpdate(t *testing.T) {
	p, err := session.NewPipeline(session.PipelineConfig{
		Speaker: "Interviewer",
		Source:  &audiomock.Source{SourceFormat: audio.RecognizerFormat},
		STT:     &sttmock.Provider{},
	})
	if err != nil {
		t.Fatal(err)
	}
	orch := session.NewOrchestrator(session.OrchestratorConfig{
		Classifier: &nlp.RuleClassifier{},
		Generator:  answer.NewGenerator(&llmmock.Provider{}, nil),
	})

	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	cfg := &config.Config{}
	cfg.NLP.Vocabulary = []string{"Kafka"}

	d := config.ConfigDiff{
		LogLevelChanged:   true,
		NewLogLevel:       config.LogDebug,
		VocabularyChanged: true,
		AnswerModeChanged: true,
		NewAnswerMode:     config.AnswerDetailed,
		ChannelChanges: []config.ChannelDiff{
			{Name: "interviewer", ThresholdChanged: true, NewThreshold: 0.7},
			// A channel that no longer maps to a running pipeline is skipped.
			{Name: "removed", ThresholdChanged: true, NewThreshold: 0.9},
		},
	}

	applyConfigUpdate(d, cfg, level, orch, map[string]*session.Pipeline{"interviewer": p})

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{config.LogInfo, slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := slogLevel(tc.in); got != tc.want {
			t.Errorf("slogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
