package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"text to echo back"`
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	echo, err := New("echo", "Echo the input text.",
		func(_ context.Context, in echoInput) (string, error) {
			return in.Text, nil
		})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	boom, err := New("boom", "Always fails.",
		func(_ context.Context, _ echoInput) (string, error) {
			return "", errors.New("exploded")
		})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, tool := range []*Tool{echo, boom} {
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestRegistryInvoke(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	got := reg.Invoke(ctx, "echo", map[string]any{"text": "hello"})
	if got != "hello" {
		t.Errorf("Invoke = %q, want %q", got, "hello")
	}
}

func TestRegistryInvokeFailureEnvelopes(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		tool     string
		input    any
		wantPart string
	}{
		{"unknown tool", "nope", map[string]any{}, "unknown tool"},
		{"handler error", "boom", map[string]any{"text": "x"}, "exploded"},
		{"wrong argument type", "echo", map[string]any{"text": 42}, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := reg.Invoke(ctx, tt.tool, tt.input)

			var envelope struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if err := json.Unmarshal([]byte(out), &envelope); err != nil {
				t.Fatalf("output is not a JSON envelope: %q", out)
			}
			if envelope.Success {
				t.Error("failure envelope has success=true")
			}
			if !strings.Contains(envelope.Error, tt.wantPart) {
				t.Errorf("error = %q, want it to contain %q", envelope.Error, tt.wantPart)
			}
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := newTestRegistry(t)
	dup, err := New("echo", "duplicate", func(_ context.Context, _ echoInput) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := reg.Register(dup); err == nil {
		t.Error("Register accepted a duplicate name")
	}
}

func TestRegistryToolsSorted(t *testing.T) {
	reg := newTestRegistry(t)
	tools := reg.Tools()
	if len(tools) != 2 || tools[0].Name != "boom" || tools[1].Name != "echo" {
		names := make([]string, len(tools))
		for i, tool := range tools {
			names[i] = tool.Name
		}
		t.Errorf("Tools() order = %v", names)
	}
}

func TestToolSchemaInferred(t *testing.T) {
	tool, err := New("echo", "Echo.", func(_ context.Context, in echoInput) (string, error) {
		return in.Text, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tool.InputSchema == nil {
		t.Fatal("InputSchema is nil")
	}
	if _, ok := tool.InputSchema.Properties["text"]; !ok {
		t.Error("schema missing text property")
	}
}
