package config_test

import (
	"errors"
	"testing"

	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/pkg/provider/llm"
	llmmock "github.com/sotto-ai/sotto/pkg/provider/llm/mock"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	sttmock "github.com/sotto-ai/sotto/pkg/provider/stt/mock"
)

func TestRegistry_CreateSTT(t *testing.T) {
	r := config.NewRegistry()

	var gotEntry config.ProviderEntry
	r.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		gotEntry = e
		return &sttmock.Provider{}, nil
	})

	entry := config.ProviderEntry{Backend: "deepgram", APIKey: "k", Model: "nova-2"}
	p, err := r.CreateSTT(entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("nil provider")
	}
	if gotEntry.Model != "nova-2" {
		t.Errorf("factory entry = %+v", gotEntry)
	}
}

func TestRegistry_CreateLLM(t *testing.T) {
	r := config.NewRegistry()
	r.RegisterLLM("groq", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	if _, err := r.CreateLLM(config.ProviderEntry{Backend: "groq"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	r := config.NewRegistry()

	_, err := r.CreateSTT(config.ProviderEntry{Backend: "nonexistent"})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("err = %v, want ErrBackendNotRegistered", err)
	}
	_, err = r.CreateLLM(config.ProviderEntry{Backend: "nonexistent"})
	if !errors.Is(err, config.ErrBackendNotRegistered) {
		t.Errorf("err = %v, want ErrBackendNotRegistered", err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	r := config.NewRegistry()
	r.RegisterLLM("groq", func(config.ProviderEntry) (llm.Provider, error) {
		t.Error("stale factory invoked")
		return nil, nil
	})
	replacement := &llmmock.Provider{}
	r.RegisterLLM("groq", func(config.ProviderEntry) (llm.Provider, error) {
		return replacement, nil
	})

	p, err := r.CreateLLM(config.ProviderEntry{Backend: "groq"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != replacement {
		t.Error("overwritten factory not used")
	}
}
