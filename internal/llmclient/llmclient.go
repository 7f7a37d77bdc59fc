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

// Package llmclient adapts pkg/llm's multi-provider Provider onto the
// minimal single-exchange ChatClient contract internal/summarizer
// collaborates with, the same narrowing the teacher does wherever a
// wide provider surface backs one specific call site.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	atlaserrors "github.com/atlasgraph/atlas/internal/errors"
	"github.com/atlasgraph/atlas/pkg/llm"
)

// Adapter implements summarizer.ChatClient on top of a pkg/llm.Provider.
type Adapter struct {
	Provider llm.Provider
	Model    string
}

// New builds an Adapter. model overrides the provider's own default
// model when non-empty.
func New(provider llm.Provider, model string) *Adapter {
	return &Adapter{Provider: provider, Model: model}
}

// Chat implements summarizer.ChatClient by issuing a single two-message
// exchange and returning the assistant's raw content.
func (a *Adapter) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := a.Provider.Chat(ctx, llm.ChatRequest{
		Model: a.Model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s chat: %w", a.Provider.Name(), classify(err))
	}
	return resp.Message.Content, nil
}

// classify wraps err with the taxonomy sentinel the retry policy
// switches on: network-level failures are worth retrying, anything
// else from the provider is treated as permanent so a bad model name
// or exhausted credentials doesn't burn the whole retry budget.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", atlaserrors.ErrTransient, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "429") {
		return fmt.Errorf("%w: %v", atlaserrors.ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", atlaserrors.ErrPermanent, err)
}
