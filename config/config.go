// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the options recognized by the query-processing core.
// Every field has a documented hard default (Default), which an optional
// YAML file can override; a subset of fields (listed on Load) can then be
// overridden again by environment variables, in the style of
// services/orchestrator/conversation.DefaultSearchConfig. The YAML file mirrors
// policy_engine.NewPolicyEngine's use of gopkg.in/yaml.v3 for its own
// declarative table.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig holds the guardrail's sliding-window thresholds.
type RateLimitConfig struct {
	PerMinuteSoftWarn int           `yaml:"perMinuteSoftWarn"`
	PerMinuteBlock    int           `yaml:"perMinuteBlock"`
	PerMinuteCooldown time.Duration `yaml:"perMinuteCooldown"`
	PerHourBlock      int           `yaml:"perHourBlock"`
	PerHourCooldown   time.Duration `yaml:"perHourCooldown"`
	PerDayCap         int           `yaml:"perDayCap"`
}

// EmbeddingCacheConfig configures the embedding cache. Only TTL is passed to
// the cache; Size is not read by it, and the cache has no entry-count bound.
type EmbeddingCacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// LLMConfig configures the optional LLM-backed intent classifier and the
// embedder capabilities.
type LLMConfig struct {
	Endpoint            string `yaml:"endpoint"`
	ChatDeployment      string `yaml:"chatDeployment"`
	EmbeddingDeployment string `yaml:"embeddingDeployment"`
	MaxConcurrent       int    `yaml:"maxConcurrent"`
	MaxRetries          int    `yaml:"maxRetries"`

	// key is held in a memguard enclave rather than as a plain string field,
	// so it never appears in a %+v dump of Config or in a panic trace,
	// matching how services/llm guards provider credentials. Sealed once at
	// startup in Load.
	key *memguard.Enclave
}

// Key decrypts and returns the LLM API key. The caller must call
// Destroy on the returned buffer when done with it.
func (c LLMConfig) Key() (*memguard.LockedBuffer, error) {
	if c.key == nil {
		return nil, fmt.Errorf("no LLM API key configured")
	}
	return c.key.Open()
}

// RankingConfig weights the ranker's scoring factors and bounds result
// diversity. Weights are renormalized at use if they don't sum to 1.
type RankingConfig struct {
	SemanticRelevance    float64 `yaml:"semanticRelevance"`
	ExactMatchCount      float64 `yaml:"exactMatchCount"`
	PriceCompetitiveness float64 `yaml:"priceCompetitiveness"`
	VehicleCondition     float64 `yaml:"vehicleCondition"`
	Recency              float64 `yaml:"recency"`

	MaxPerMake  int `yaml:"maxPerMake"`
	MaxPerModel int `yaml:"maxPerModel"`
}

// SearchIndexConfig configures the external SearchIndex capability.
type SearchIndexConfig struct {
	Endpoint         string `yaml:"endpoint"`
	IndexName        string `yaml:"indexName"`
	VectorDimensions int    `yaml:"vectorDimensions"`

	key *memguard.Enclave
}

// Key decrypts and returns the SearchIndex API key.
func (c SearchIndexConfig) Key() (*memguard.LockedBuffer, error) {
	if c.key == nil {
		return nil, fmt.Errorf("no search index API key configured")
	}
	return c.key.Open()
}

// Config is the fully resolved set of options recognized by the core.
type Config struct {
	SessionTimeout         time.Duration        `yaml:"sessionTimeout"`
	SweeperInterval        time.Duration        `yaml:"sweeperInterval"`
	MaxMessagesPerSession  int                  `yaml:"maxMessagesPerSession"`
	EmbeddingCache         EmbeddingCacheConfig `yaml:"embeddingCache"`
	MinimumRelevanceScore  float64              `yaml:"minimumRelevanceScore"`
	MaxResultsCap          int                  `yaml:"maxResultsCap"`
	RateLimit              RateLimitConfig      `yaml:"rateLimit"`
	LLM                    LLMConfig            `yaml:"llm"`
	SearchIndex            SearchIndexConfig    `yaml:"searchIndex"`
	Ranking                RankingConfig        `yaml:"ranking"`
	RequestDeadline        time.Duration        `yaml:"requestDeadline"`

	// QualitativeTermsPath optionally points at a YAML file overriding the
	// built-in concept table (the concepts.yaml embedded in package concept).
	// Empty means use the
	// built-in table only.
	QualitativeTermsPath string `yaml:"qualitativeTermsPath"`
}

// Default returns the hard-coded defaults for every recognized option.
//
// SessionTimeout defaults to 4 hours rather than the shorter window some
// deployments expect, since a vehicle-shopping conversation often resumes
// across a lunch break or a commute. Operators wanting a tighter window set
// `sessionTimeout: 30m` (or similar) in their YAML config.
func Default() Config {
	return Config{
		SessionTimeout:        4 * time.Hour,
		SweeperInterval:       48 * time.Minute, // must stay <= 1/5 of SessionTimeout, see Validate
		MaxMessagesPerSession: 100,
		EmbeddingCache: EmbeddingCacheConfig{
			Size: 1000,
			TTL:  24 * time.Hour,
		},
		MinimumRelevanceScore: 0.50,
		MaxResultsCap:         100,
		RateLimit: RateLimitConfig{
			PerMinuteSoftWarn: 10,
			PerMinuteBlock:    15,
			PerMinuteCooldown: 30 * time.Second,
			PerHourBlock:      100,
			PerHourCooldown:   10 * time.Minute,
			PerDayCap:         500,
		},
		LLM: LLMConfig{
			MaxConcurrent: 4,
			MaxRetries:    3,
		},
		SearchIndex: SearchIndexConfig{
			VectorDimensions: 1536,
		},
		Ranking: RankingConfig{
			SemanticRelevance:    0.40,
			ExactMatchCount:      0.25,
			PriceCompetitiveness: 0.15,
			VehicleCondition:     0.10,
			Recency:              0.10,
			MaxPerMake:           3,
			MaxPerModel:          2,
		},
		RequestDeadline: 3 * time.Second,
	}
}

// Load builds a Config starting from Default(), merging a YAML file at
// path (if non-empty and present), then applying environment-variable
// overrides, then sealing API-key material into memguard enclaves.
//
// Environment variables recognized (mirroring the CONV_SEARCH_*/getEnvInt
// convention used elsewhere in this codebase):
//
//	VEHICLESEARCH_SESSION_TIMEOUT, VEHICLESEARCH_MAX_MESSAGES,
//	VEHICLESEARCH_MIN_RELEVANCE, VEHICLESEARCH_MAX_RESULTS_CAP,
//	VEHICLESEARCH_LLM_ENDPOINT, VEHICLESEARCH_LLM_KEY,
//	VEHICLESEARCH_SEARCH_ENDPOINT, VEHICLESEARCH_SEARCH_KEY,
//	VEHICLESEARCH_SEARCH_INDEX_NAME, VEHICLESEARCH_VECTOR_DIMENSIONS
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if key := os.Getenv("VEHICLESEARCH_LLM_KEY"); key != "" {
		cfg.LLM.key = memguard.NewEnclave([]byte(key))
	}
	if key := os.Getenv("VEHICLESEARCH_SEARCH_KEY"); key != "" {
		cfg.SearchIndex.key = memguard.NewEnclave([]byte(key))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := envDuration("VEHICLESEARCH_SESSION_TIMEOUT"); v != 0 {
		cfg.SessionTimeout = v
	}
	if v := envInt("VEHICLESEARCH_MAX_MESSAGES"); v != 0 {
		cfg.MaxMessagesPerSession = v
	}
	if v := envFloat("VEHICLESEARCH_MIN_RELEVANCE"); v != 0 {
		cfg.MinimumRelevanceScore = v
	}
	if v := envInt("VEHICLESEARCH_MAX_RESULTS_CAP"); v != 0 {
		cfg.MaxResultsCap = v
	}
	if v := os.Getenv("VEHICLESEARCH_LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("VEHICLESEARCH_SEARCH_ENDPOINT"); v != "" {
		cfg.SearchIndex.Endpoint = v
	}
	if v := os.Getenv("VEHICLESEARCH_SEARCH_INDEX_NAME"); v != "" {
		cfg.SearchIndex.IndexName = v
	}
	if v := envInt("VEHICLESEARCH_VECTOR_DIMENSIONS"); v != 0 {
		cfg.SearchIndex.VectorDimensions = v
	}
}

func envInt(key string) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func envFloat(key string) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}

func envDuration(key string) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// Validate checks cross-field constraints the plain env/YAML merge can't
// express. Callers typically wrap a non-nil result as apperrors.Permanent.
func (c Config) Validate() error {
	if c.MaxResultsCap <= 0 || c.MaxResultsCap > 100 {
		return fmt.Errorf("config: maxResultsCap must be in (0,100], got %d", c.MaxResultsCap)
	}
	if c.MinimumRelevanceScore < 0 || c.MinimumRelevanceScore > 1 {
		return fmt.Errorf("config: minimumRelevanceScore must be in [0,1], got %f", c.MinimumRelevanceScore)
	}
	if c.SearchIndex.VectorDimensions <= 0 {
		return fmt.Errorf("config: searchIndex.vectorDimensions must be positive, got %d", c.SearchIndex.VectorDimensions)
	}
	if c.SweeperInterval > c.SessionTimeout/5 {
		return fmt.Errorf("config: sweeperInterval (%s) must be <= 1/5 of sessionTimeout (%s)", c.SweeperInterval, c.SessionTimeout)
	}
	if c.Ranking.MaxPerMake <= 0 || c.Ranking.MaxPerModel <= 0 {
		return fmt.Errorf("config: ranking.maxPerMake and maxPerModel must be positive")
	}
	return nil
}
