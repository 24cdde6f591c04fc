//go:build darwin

package ioloop

import (
	"context"
	"testing"

	"github.com/corenet-go/corenet/internal/executor"
)

type fakeProvider struct {
	events []ChannelEvent
}

func (f *fakeProvider) Poll() []ChannelEvent {
	out := f.events
	f.events = nil
	return out
}

func TestBTSourceDeliversMatchingToken(t *testing.T) {
	provider := &fakeProvider{}
	src := NewBTSource(provider)

	result := executor.NewCompletionResult()
	op := &executor.Operation{Kind: executor.OpSend, Result: result}
	src.Submit(0x1, op)

	provider.events = []ChannelEvent{{Token: 0x1, N: 12}}
	src.Poll()

	outcome, err := result.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if outcome.N != 12 {
		t.Errorf("expected N=12, got %d", outcome.N)
	}
}

func TestBTSourceIgnoresUnknownToken(t *testing.T) {
	provider := &fakeProvider{events: []ChannelEvent{{Token: 0x99, N: 5}}}
	src := NewBTSource(provider)

	out := src.Poll()
	if len(out) != 0 {
		t.Errorf("expected no completions for unregistered token, got %d", len(out))
	}
}
