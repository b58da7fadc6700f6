package translate

import (
	"context"
	"time"
)

// Identity is the last link of the chain: it returns text unchanged.
type Identity struct{}

func (Identity) Name() string           { return NameIdentity }
func (Identity) Supports(string) bool   { return true }
func (Identity) Timeout() time.Duration { return time.Second }
func (Identity) Probe(context.Context) error {
	return nil
}

func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}
