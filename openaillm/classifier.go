// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package openaillm adapts an OpenAI chat model to the
// understanding.LLMClassifier capability: a fixed system prompt and a
// JSON-mode response constrain the model to one of the five recognized
// domain.Intent values plus a confidence score.
package openaillm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/config"
	"github.com/aleutian/vehiclesearch/domain"
)

const systemPrompt = `You classify a user's message in a conversational vehicle-search assistant.
Respond with strict JSON of the shape {"intent": "<value>", "confidence": <0..1>}.
<value> must be exactly one of: Search, Refine, Compare, Information, OffTopic.
- Search: the user is describing or starting a search for a vehicle.
- Refine: the user is narrowing or changing an existing search ("actually, cheaper", "also needs a sunroof").
- Compare: the user wants two or more vehicles compared.
- Information: the user is asking a factual question rather than searching.
- OffTopic: the message has nothing to do with vehicle search.
Use the previous message only as context for what "it"/"that"/follow-ups refer to.`

var validIntents = map[string]domain.Intent{
	string(domain.IntentSearch):      domain.IntentSearch,
	string(domain.IntentRefine):      domain.IntentRefine,
	string(domain.IntentCompare):     domain.IntentCompare,
	string(domain.IntentInformation): domain.IntentInformation,
	string(domain.IntentOffTopic):    domain.IntentOffTopic,
}

// Classifier wraps an OpenAI chat client scoped to one model.
type Classifier struct {
	client *openai.Client
	model  string
}

// New builds a Classifier from cfg (the LLM section of the config), following the same key-resolution
// and custom-endpoint pattern as openaiembed.New.
func New(cfg config.LLMConfig) (*Classifier, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, fmt.Errorf("openaillm: %w", err)
	}
	defer key.Destroy()

	model := cfg.ChatDeployment
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("openaillm: no chatDeployment configured, defaulting", "model", model)
	}

	clientCfg := openai.DefaultConfig(string(key.Bytes()))
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &Classifier{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

type intentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classify implements understanding.LLMClassifier.
func (c *Classifier) Classify(ctx context.Context, text, previousText string) (domain.IntentResult, error) {
	userContent := text
	if previousText != "" {
		userContent = fmt.Sprintf("Previous message: %s\nCurrent message: %s", previousText, text)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return domain.IntentResult{}, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.IntentResult{}, apperrors.Permanent("openai returned no completion choices", nil)
	}
	return parseIntentResponse(resp.Choices[0].Message.Content)
}

// parseIntentResponse decodes and validates the model's JSON-mode reply.
func parseIntentResponse(content string) (domain.IntentResult, error) {
	var parsed intentResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.IntentResult{}, apperrors.Permanent("openai returned malformed intent JSON", err)
	}

	intent, ok := validIntents[parsed.Intent]
	if !ok {
		return domain.IntentResult{}, apperrors.Permanent(fmt.Sprintf("openai returned an unrecognized intent %q", parsed.Intent), nil)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return domain.IntentResult{Intent: intent, Confidence: confidence}, nil
}

func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return apperrors.Transient("openai chat request failed", err)
		}
		return apperrors.Permanent("openai chat request rejected", err)
	}
	return apperrors.Transient("openai chat request failed", err)
}
