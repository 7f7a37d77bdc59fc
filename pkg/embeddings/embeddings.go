// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package embeddings provides a batch-first embedding provider
// interface: one HTTP round trip computes vectors for a whole batch of
// texts instead of one request per text.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider computes embedding vectors for a batch of texts in one
// call, preserving input order in the output.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimensions() int
}

// Config selects and configures a Provider.
type Config struct {
	Type       string // "mock", "ollama", "openai"
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// New builds a Provider from cfg.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "mock":
		dims := cfg.Dimensions
		if dims == 0 {
			dims = 384
		}
		return NewMock(dims), nil
	case "ollama", "local":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return newOllama(baseURL, model), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return newOpenAI(baseURL, cfg.APIKey, model), nil
	default:
		return nil, fmt.Errorf("embeddings: unknown provider type %q", cfg.Type)
	}
}

// Mock deterministically hashes each text into a fixed-size vector, for
// tests and offline development.
type Mock struct {
	dims int
}

// NewMock returns a Mock embedding provider of the given dimensionality.
func NewMock(dims int) *Mock {
	return &Mock{dims: dims}
}

func (m *Mock) Name() string    { return "mock" }
func (m *Mock) Dimensions() int { return m.dims }

func (m *Mock) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbedding(text, m.dims)
	}
	return out, nil
}

func hashEmbedding(text string, dims int) []float32 {
	v := make([]float32, dims)
	h := fnv64a(text)
	for i := range v {
		h = h*1099511628211 ^ uint64(i)
		v[i] = float32(h%2000)/1000 - 1
	}
	return normalize(v)
}

func fnv64a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	inv := float32(1.0 / sqrt(sumSq))
	for i, x := range v {
		v[i] = x * inv
	}
	return v
}

func sqrt(x float64) float64 {
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

type ollamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func newOllama(baseURL, model string) *ollamaProvider {
	return &ollamaProvider{baseURL: baseURL, model: model, client: &http.Client{Timeout: 120 * time.Second}}
}

func (o *ollamaProvider) Name() string    { return "ollama" }
func (o *ollamaProvider) Dimensions() int { return 0 }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error"`
}

// Embed calls Ollama's batch-capable /api/embed endpoint once for the
// whole slice, rather than /api/embeddings once per text.
func (o *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request (is it running at %s?): %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, parsed.Error)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, e := range parsed.Embeddings {
		v := make([]float32, len(e))
		for j, f := range e {
			v[j] = float32(f)
		}
		out[i] = normalize(v)
	}
	return out, nil
}

type openAIProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func newOpenAI(baseURL, apiKey, model string) *openAIProvider {
	return &openAIProvider{baseURL: baseURL, apiKey: apiKey, model: model, client: &http.Client{Timeout: 60 * time.Second}}
}

func (o *openAIProvider) Name() string    { return "openai" }
func (o *openAIProvider) Dimensions() int { return 0 }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed posts the whole batch to the OpenAI-compatible /embeddings
// endpoint, which natively accepts an array of inputs in one request.
func (o *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbedRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, msg)
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
