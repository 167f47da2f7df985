// Package model adapts Genkit generation to the agent's Decider contract and
// layers caching and retry on top of it.
package model

import (
	"context"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quarry0/quarry/internal/agent"
)

// Config carries the decider's dependencies.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string
	System    string
	Tools     []ai.ToolRef
	Logger    *slog.Logger
	Retry     RetryConfig

	// Limiter throttles model calls across all conversations. Defaults to
	// 10 req/s with a burst of 30.
	Limiter *rate.Limiter
}

// GenkitDecider asks the model for one decision per call. Tool requests are
// returned to the caller instead of being executed by Genkit, so the agent
// engine owns the act loop.
type GenkitDecider struct {
	g         *genkit.Genkit
	modelName string
	system    string
	toolRefs  []ai.ToolRef
	logger    *slog.Logger
	retry     RetryConfig
	limiter   *rate.Limiter
}

func NewGenkitDecider(cfg Config) (*GenkitDecider, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("model: Genkit instance is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	return &GenkitDecider{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		system:    cfg.System,
		toolRefs:  cfg.Tools,
		logger:    logger,
		retry:     retry,
		limiter:   limiter,
	}, nil
}

// Decide sends the history to the model and returns either final text or the
// requested tool calls. Histories are deep copied before the call because
// Genkit mutates message content in place while rendering.
func (d *GenkitDecider) Decide(ctx context.Context, history []*ai.Message) (*agent.Decision, error) {
	messages := deepCopyMessages(history)

	opts := []ai.GenerateOption{
		ai.WithSystem(d.system),
		ai.WithMessages(messages...),
		ai.WithTools(d.toolRefs...),
		ai.WithReturnToolRequests(true),
	}
	if d.modelName != "" {
		opts = append(opts, ai.WithModelName(d.modelName))
	}

	var resp *ai.ModelResponse
	err := d.withRetry(ctx, func(ctx context.Context) error {
		var genErr error
		resp, genErr = genkit.Generate(ctx, d.g, opts...)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	calls := resp.ToolRequests()
	for _, call := range calls {
		if call.Ref == "" {
			call.Ref = uuid.NewString()
		}
	}
	return &agent.Decision{
		Text:  resp.Text(),
		Calls: calls,
	}, nil
}

// deepCopyMessages copies messages and their parts so concurrent or repeated
// generation never shares mutable content with stored history.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies one part. ToolRequest.Input and ToolResponse.Output
// are type any and copied by reference; Genkit only mutates the content
// slice, not tool data.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Name:  p.ToolRequest.Name,
			Input: p.ToolRequest.Input,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
