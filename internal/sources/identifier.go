// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-search/pkg/types"
)

var (
	// arxivPattern matches new-style IDs with an optional version:
	// "2301.07041", "arXiv:2301.07041v2".
	arxivPattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

	// arxivOldPattern matches pre-2007 IDs: "hep-th/9901001", "math.GT/0309136v1".
	arxivOldPattern = regexp.MustCompile(`^(?i:arxiv:)?([a-z\-]+(?:\.[A-Z]{2})?/\d{7}(?:v\d+)?)$`)

	// doiPattern matches DOIs: "10.1101/2024.01.15.575123".
	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

	// pmidPattern matches "PMID:12345678" or a bare PubMed number.
	pmidPattern = regexp.MustCompile(`^(?i:pmid:\s*)?(\d{1,9})$`)
)

// Classify determines which source an identifier belongs to and returns
// its normalized form: bare arXiv ID, bare DOI, or "PMID:<n>". URL and
// "doi:" prefixes are stripped.
func Classify(id string) (types.Source, string, error) {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{
		"https://doi.org/", "http://doi.org/", "doi:",
		"https://arxiv.org/abs/", "http://arxiv.org/abs/",
	} {
		if len(id) > len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
			id = id[len(prefix):]
			break
		}
	}

	if m := pmidPattern.FindStringSubmatch(id); m != nil {
		return types.SourcePubMed, "PMID:" + m[1], nil
	}
	if m := arxivPattern.FindStringSubmatch(id); m != nil {
		return types.SourceArxiv, m[1], nil
	}
	if m := arxivOldPattern.FindStringSubmatch(id); m != nil {
		return types.SourceArxiv, m[1], nil
	}
	if doiPattern.MatchString(id) {
		return types.SourceBiorxiv, id, nil
	}
	return "", id, fmt.Errorf("unrecognized identifier %q (want arXiv ID, DOI, or PMID)", id)
}
