// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-search/pkg/types"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 7 ", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b c", clip("a\n  b\tc", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
	assert.Equal(t, "résu...", clip("résumé of results", 7))
}

func TestFilterFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addFilterFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--category", "nlp", "--category", "security", "--source", "PubMed", "--unprocessed"}))

	f, err := filterFromFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"nlp", "security"}, f.Categories)
	assert.Equal(t, types.SourcePubMed, f.Source)
	assert.True(t, f.UnprocessedOnly)

	bad := &cobra.Command{}
	addFilterFlags(bad)
	require.NoError(t, bad.ParseFlags([]string{"--source", "scholar"}))
	_, err = filterFromFlags(bad)
	assert.Error(t, err)
}

func TestWorkerConfig_ForwardsConfigFile(t *testing.T) {
	orig := cfgFile
	t.Cleanup(func() { cfgFile = orig })

	wc := types.WorkerConfig{Command: "paper-worker", Args: []string{"classification"}}

	cfgFile = ""
	assert.Equal(t, []string{"classification"}, workerConfig(wc).Args)

	cfgFile = "/etc/paper-search.yaml"
	got := workerConfig(wc)
	assert.Equal(t, []string{"classification", "--config", "/etc/paper-search.yaml"}, got.Args)
	assert.Equal(t, []string{"classification"}, wc.Args)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"scrape"},
		{"papers", "list"},
		{"papers", "process"},
		{"papers", "keypoints"},
		{"jobs", "run"},
		{"report"},
		{"serve"},
		{"export"},
		{"categories"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
