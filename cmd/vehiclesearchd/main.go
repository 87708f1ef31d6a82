// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aleutian/vehiclesearch/compose"
	"github.com/aleutian/vehiclesearch/concept"
	"github.com/aleutian/vehiclesearch/config"
	"github.com/aleutian/vehiclesearch/guardrail"
	"github.com/aleutian/vehiclesearch/loggingx"
	"github.com/aleutian/vehiclesearch/mapper"
	"github.com/aleutian/vehiclesearch/openaiembed"
	"github.com/aleutian/vehiclesearch/openaillm"
	"github.com/aleutian/vehiclesearch/refiner"
	"github.com/aleutian/vehiclesearch/search"
	"github.com/aleutian/vehiclesearch/server"
	"github.com/aleutian/vehiclesearch/session"
	"github.com/aleutian/vehiclesearch/understanding"
	"github.com/aleutian/vehiclesearch/weaviateindex"
)

var (
	configPath string
	port       string

	rootCmd = &cobra.Command{
		Use:   "vehiclesearchd",
		Short: "Serves the conversational vehicle-search query-processing core over HTTP",
		RunE:  runServe,
	}
)

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to a YAML config file overriding the built-in defaults")
	rootCmd.Flags().StringVar(&port, "port", "8080", "HTTP listen port")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("vehiclesearchd: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := loggingx.Init(loggingx.Config{Level: slog.LevelInfo, Format: loggingx.FormatJSON})

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	concepts, err := concept.New()
	if err != nil {
		return fmt.Errorf("loading qualitative-term concepts: %w", err)
	}
	if cfg.QualitativeTermsPath != "" {
		data, err := os.ReadFile(cfg.QualitativeTermsPath)
		if err != nil {
			return fmt.Errorf("reading qualitative terms override: %w", err)
		}
		if concepts, err = concept.NewFromTable(data); err != nil {
			return fmt.Errorf("parsing qualitative terms override: %w", err)
		}
	}

	dict, err := understanding.NewDictionary(concepts)
	if err != nil {
		return fmt.Errorf("building entity dictionary: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	index, err := weaviateindex.NewClient(cfg.SearchIndex)
	if err != nil {
		return fmt.Errorf("connecting to the vehicle index: %w", err)
	}
	if err := index.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring vehicle index schema: %w", err)
	}

	embedder, err := openaiembed.New(cfg.LLM)
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}
	if err := search.AssertEmbeddingDimension(ctx, embedder, cfg.SearchIndex.VectorDimensions); err != nil {
		return fmt.Errorf("validating embedder dimension: %w", err)
	}

	var classifier understanding.LLMClassifier
	if llm, err := openaillm.New(cfg.LLM); err != nil {
		logger.Warn("no LLM intent classifier configured, falling back to regex classification", "error", err)
	} else {
		classifier = llm
	}

	cache, err := search.NewEmbeddingCache(embedder, cfg.EmbeddingCache.TTL)
	if err != nil {
		return fmt.Errorf("building embedding cache: %w", err)
	}

	guard, err := guardrail.New(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("building guardrail: %w", err)
	}

	store := session.New(cfg.MaxMessagesPerSession, cfg.SessionTimeout)
	sweeper := session.NewSweeper(store, guard.RateLimiter(), cfg.SweeperInterval, cfg.SessionTimeout)
	sweeper.Start(ctx)

	orchestrator := search.NewOrchestrator(index, embedder, concepts, cache, cfg.MinimumRelevanceScore, cfg.MaxResultsCap)
	composer := compose.New()

	svc := &server.Service{
		Sessions:      store,
		Guardrail:     guard,
		Parser:        understanding.NewParser(dict, classifier),
		Mapper:        mapper.New(concepts),
		Composer:      composer,
		Refiner:       refiner.New(composer),
		Orchestrator:  orchestrator,
		Index:         index,
		Concepts:      concepts,
		Ranking:       cfg.Ranking,
		MaxResultsCap: cfg.MaxResultsCap,
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server.New(svc),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vehiclesearchd listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-stop:
		logger.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sweeper.Stop()
	return httpServer.Shutdown(shutdownCtx)
}
