// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

const systemPrompt = `You are a research assistant that writes accurate, neutral summaries of scientific papers. Use only the information provided. Do not invent results, numbers, or citations.`

// PaperText is the paper content given to the prompts.
type PaperText struct {
	Title    string
	Authors  string
	Abstract string
}

var (
	summaryTmpl = template.Must(template.New("summary").Parse(`Summarize the following paper in 2-3 sentences for a technical reader.

Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}

Summary:`))

	tldrTmpl = template.Must(template.New("tldr").Parse(`Write a one-sentence TL;DR (at most 30 words) of the following paper.

Title: {{.Title}}
Abstract: {{.Abstract}}

TL;DR:`))

	keyPointsTmpl = template.Must(template.New("key_points").Parse(`List the 3-5 key contributions or findings of the following paper. Write one point per line, each starting with "- ".

Title: {{.Title}}
Abstract: {{.Abstract}}

Key points:`))

	detailedTmpl = template.Must(template.New("detailed").Parse(`Write a detailed analysis of the following paper with these sections, each a short paragraph:
Problem, Approach, Results, Limitations.

Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}

Analysis:`))
)

func render(t *template.Template, p PaperText) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func generate(ctx context.Context, g Generator, t *template.Template, p PaperText) (string, error) {
	prompt, err := render(t, p)
	if err != nil {
		return "", err
	}
	out, err := g.GenerateWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: model returned empty text", t.Name())
	}
	return out, nil
}

// Summarize writes a short summary of the paper.
func Summarize(ctx context.Context, g Generator, p PaperText) (string, error) {
	return generate(ctx, g, summaryTmpl, p)
}

// TLDR writes a one-sentence summary.
func TLDR(ctx context.Context, g Generator, p PaperText) (string, error) {
	return generate(ctx, g, tldrTmpl, p)
}

// Detailed writes a sectioned analysis.
func Detailed(ctx context.Context, g Generator, p PaperText) (string, error) {
	return generate(ctx, g, detailedTmpl, p)
}

// KeyPoints returns the paper's key points, one per list entry.
func KeyPoints(ctx context.Context, g Generator, p PaperText) ([]string, error) {
	out, err := generate(ctx, g, keyPointsTmpl, p)
	if err != nil {
		return nil, err
	}
	return parseBullets(out), nil
}

// parseBullets splits model output into list items, dropping bullet and
// number markers.
func parseBullets(s string) []string {
	var points []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 && isDigits(line[:i]) {
			line = strings.TrimSpace(line[i+1:])
		}
		if line != "" {
			points = append(points, line)
		}
	}
	return points
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
