package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) { return string(s), nil }

// File reads the token from a file on every call, so a token refreshed on
// disk is picked up by the next mutation. A missing file means signed out.
type File struct {
	Path string
}

func (f File) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Func adapts a function to a token source.
type Func func(ctx context.Context) (string, error)

func (f Func) Token(ctx context.Context) (string, error) { return f(ctx) }
