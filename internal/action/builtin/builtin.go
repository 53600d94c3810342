// Package builtin provides the executors every registry starts with.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/wavegraph/internal/action"
	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// Register adds succeed, fail and delay to reg.
func Register(reg *action.Registry) {
	reg.Register(Succeed{})
	reg.Register(Fail{})
	reg.Register(Delay{})
}

// NewRegistry returns a registry holding the built-in executors.
func NewRegistry() *action.Registry {
	reg := action.NewRegistry()
	Register(reg)
	return reg
}

// Succeed handles "succeed" actions.
type Succeed struct{}

func (Succeed) Type() string { return "succeed" }

func (Succeed) Validate(map[string]string) error { return nil }

func (Succeed) Execute(context.Context, graph.Node) error { return nil }

// Fail handles "fail" actions. The optional "message" param becomes the
// node's error text.
type Fail struct{}

func (Fail) Type() string { return "fail" }

func (Fail) Validate(map[string]string) error { return nil }

func (Fail) Execute(_ context.Context, n graph.Node) error {
	if msg := n.Config["message"]; msg != "" {
		return errors.New(msg)
	}
	return fmt.Errorf("fail: node %s", n.ID)
}

// Delay handles "delay" actions: it waits delay_ms milliseconds, then
// succeeds. Cancelling the context fails the node.
type Delay struct{}

func (Delay) Type() string { return "delay" }

func (Delay) Validate(config map[string]string) error {
	_, err := delayOf(config)
	return err
}

func (Delay) Execute(ctx context.Context, n graph.Node) error {
	d, err := delayOf(n.Config)
	if err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delay: %w", ctx.Err())
	}
}

func delayOf(config map[string]string) (time.Duration, error) {
	raw, ok := config["delay_ms"]
	if !ok {
		return 0, fmt.Errorf("delay: delay_ms is required")
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("delay: delay_ms must be a non-negative integer, got %q", raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
