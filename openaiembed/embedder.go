// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package openaiembed adapts the OpenAI embeddings API to the
// search.Embedder capability.
package openaiembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/config"
)

// Embedder wraps an OpenAI client scoped to one embedding model.
type Embedder struct {
	client *openai.Client
	model  string
}

// New builds an Embedder from cfg (the LLM section of the config), reading
// the API key from the memguard enclave config.Load sealed it into.
// cfg.EmbeddingDeployment
// names the model (e.g. "text-embedding-3-small"); a non-default endpoint
// (an Azure OpenAI deployment, a local proxy) is honored via a custom
// openai.ClientConfig base URL, matching how services/llm's provider
// clients each wrap a distinct base configuration.
func New(cfg config.LLMConfig) (*Embedder, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, fmt.Errorf("openaiembed: %w", err)
	}
	defer key.Destroy()

	model := cfg.EmbeddingDeployment
	if model == "" {
		model = "text-embedding-3-small"
		slog.Warn("openaiembed: no embeddingDeployment configured, defaulting", "model", model)
	}

	clientCfg := openai.DefaultConfig(string(key.Bytes()))
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &Embedder{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

// Embed implements search.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.Permanent("openai returned no embedding data", nil)
	}
	return resp.Data[0].Embedding, nil
}

// classifyError distinguishes a transient failure (rate limit, 5xx,
// network timeout) from a permanent one (bad request, auth failure) so
// search.withRetry only retries the former.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return apperrors.Transient("openai embedding request failed", err)
		}
		return apperrors.Permanent("openai embedding request rejected", err)
	}
	return apperrors.Transient("openai embedding request failed", err)
}
