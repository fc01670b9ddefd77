// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator returns a fixed response and records the last prompt.
type stubGenerator struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.response, s.err
}

func (s *stubGenerator) GenerateWithSystem(_ context.Context, system, prompt string) (string, error) {
	s.lastSystem = system
	s.lastPrompt = prompt
	return s.response, s.err
}

var paper = PaperText{Title: "Sparse Attention", Authors: "A. Author", Abstract: "We sparsify attention."}

func TestSummarize(t *testing.T) {
	g := &stubGenerator{response: "  A short summary.  "}
	out, err := Summarize(context.Background(), g, paper)
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)
	assert.Contains(t, g.lastPrompt, "Title: Sparse Attention")
	assert.Contains(t, g.lastPrompt, "Abstract: We sparsify attention.")
	assert.Equal(t, systemPrompt, g.lastSystem)
}

func TestGenerate_EmptyAndError(t *testing.T) {
	_, err := TLDR(context.Background(), &stubGenerator{response: "   "}, paper)
	assert.ErrorContains(t, err, "empty text")

	_, err = Detailed(context.Background(), &stubGenerator{err: errors.New("rate limited")}, paper)
	assert.ErrorContains(t, err, "rate limited")
}

func TestKeyPoints(t *testing.T) {
	g := &stubGenerator{response: "- First point\n* Second point\n\n3. Third point\n2) Fourth"}
	points, err := KeyPoints(context.Background(), g, paper)
	require.NoError(t, err)
	assert.Equal(t, []string{"First point", "Second point", "Third point", "Fourth"}, points)
}
