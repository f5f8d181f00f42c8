package main

import (
	"log"

	"github.com/callsense/callsense/internal/config"
	"github.com/callsense/callsense/internal/llm"
	"github.com/callsense/callsense/internal/orchestrator"
	"github.com/callsense/callsense/internal/server"
	"github.com/callsense/callsense/internal/store"
	"github.com/callsense/callsense/internal/tools"
	"github.com/callsense/callsense/internal/transcribe"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	provider, err := llm.NewOpenAI(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("failed to create LLM provider: %v", err)
	}

	transcriber := transcribe.NewWhisper(llm.NewClient(&cfg.OpenAI), cfg.OpenAI.WhisperModel)
	registry := tools.NewRegistry(transcriber, st)

	orch := orchestrator.New(provider, registry, transcriber, st, cfg.OpenAI.Model, cfg.Orchestrator)

	srv := server.New(cfg.Server, orch, st)
	if err := srv.Run(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
