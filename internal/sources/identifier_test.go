// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-search/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		in       string
		wantSrc  types.Source
		wantNorm string
	}{
		{"2301.07041", types.SourceArxiv, "2301.07041"},
		{"arXiv:2301.07041v2", types.SourceArxiv, "2301.07041v2"},
		{"https://arxiv.org/abs/2301.07041v1", types.SourceArxiv, "2301.07041v1"},
		{"hep-th/9901001", types.SourceArxiv, "hep-th/9901001"},
		{"10.1101/2024.01.15.575123", types.SourceBiorxiv, "10.1101/2024.01.15.575123"},
		{"https://doi.org/10.1101/2024.01.15.575123", types.SourceBiorxiv, "10.1101/2024.01.15.575123"},
		{"doi:10.1101/2024.01.15.575123", types.SourceBiorxiv, "10.1101/2024.01.15.575123"},
		{"PMID:31452104", types.SourcePubMed, "PMID:31452104"},
		{"pmid: 31452104", types.SourcePubMed, "PMID:31452104"},
		{"31452104", types.SourcePubMed, "PMID:31452104"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			src, norm, err := Classify(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSrc, src)
			assert.Equal(t, tt.wantNorm, norm)
		})
	}
}

func TestClassify_Unknown(t *testing.T) {
	_, _, err := Classify("not an id")
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  simple   text \n here ", "simple text here"},
		{"italic", "Role of <i>TP53</i>", "Role of TP53"},
		{"entity", "A &amp; B", "A & B"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanText(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	cfg := types.Config{Sources: types.SourcesConfig{PubMedQuery: "malaria", NCBIAPIKey: "k"}}
	for _, src := range types.AllSources {
		a, err := New(src, cfg, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, src, a.Name())
	}

	a, err := New(types.SourcePubMed, cfg, nil, nil)
	require.NoError(t, err)
	pm := a.(*PubMed)
	assert.Equal(t, "malaria", pm.DefaultQuery)
	assert.Equal(t, "k", pm.APIKey)

	_, err = New(types.SourceManual, cfg, nil, nil)
	assert.Error(t, err)
}
