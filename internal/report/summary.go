// Package report derives per-method summaries from Datamonkey result documents.
// Summaries are pure functions of (method, results, threshold).
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
)

// DefaultThreshold applies when a job was submitted without a p-value.
const DefaultThreshold = 0.1

var ErrMalformedResults = errors.New("malformed results")

// FELSummary partitions significant sites by the sign of beta - alpha.
type FELSummary struct {
	PositiveSelectionSites []int `json:"positive_selection_sites"`
	NegativeSelectionSites []int `json:"negative_selection_sites"`
	TotalPositiveSites     int   `json:"total_positive_sites"`
	TotalNegativeSites     int   `json:"total_negative_sites"`
}

// MEMESummary lists sites with evidence of episodic selection.
type MEMESummary struct {
	EpisodicSelectionSites   []int `json:"episodic_selection_sites"`
	TotalSitesUnderSelection int   `json:"total_sites_under_selection"`
}

// Summarize returns a summary for methods that have one, and nil otherwise.
func Summarize(method hyphy.Method, results json.RawMessage, threshold float64) (any, error) {
	switch method {
	case hyphy.FEL:
		sites, err := parseSites(results)
		if err != nil {
			return nil, err
		}
		return summarizeFEL(sites, threshold), nil
	case hyphy.MEME:
		sites, err := parseSites(results)
		if err != nil {
			return nil, err
		}
		return summarizeMEME(sites, threshold), nil
	}
	return nil, nil
}

// HasSummary reports whether Summarize produces anything for method.
func HasSummary(method hyphy.Method) bool {
	return method == hyphy.FEL || method == hyphy.MEME
}

type siteStats struct {
	site   int
	pValue *float64
	alpha  *float64
	beta   *float64
}

func summarizeFEL(sites []siteStats, threshold float64) *FELSummary {
	s := &FELSummary{PositiveSelectionSites: []int{}, NegativeSelectionSites: []int{}}
	for _, st := range sites {
		if st.pValue == nil || st.alpha == nil || st.beta == nil || *st.pValue > threshold {
			continue
		}
		if *st.beta > *st.alpha {
			s.PositiveSelectionSites = append(s.PositiveSelectionSites, st.site)
		} else {
			s.NegativeSelectionSites = append(s.NegativeSelectionSites, st.site)
		}
	}
	s.TotalPositiveSites = len(s.PositiveSelectionSites)
	s.TotalNegativeSites = len(s.NegativeSelectionSites)
	return s
}

func summarizeMEME(sites []siteStats, threshold float64) *MEMESummary {
	s := &MEMESummary{EpisodicSelectionSites: []int{}}
	for _, st := range sites {
		if st.pValue != nil && *st.pValue <= threshold {
			s.EpisodicSelectionSites = append(s.EpisodicSelectionSites, st.site)
		}
	}
	s.TotalSitesUnderSelection = len(s.EpisodicSelectionSites)
	return s
}

// parseSites reads either {"MLE": {site: {...}}} or a bare {site: {...}} map.
// Entries whose key is not a site number or whose value is not an object are
// ignored. The result is ordered by site.
func parseSites(results json.RawMessage) ([]siteStats, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(results, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResults, err)
	}

	siteMap := top
	if mle, ok := top["MLE"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(mle, &inner); err != nil {
			return nil, fmt.Errorf("%w: MLE is not an object", ErrMalformedResults)
		}
		siteMap = inner
	}

	var sites []siteStats
	for key, raw := range siteMap {
		site, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue
		}
		sites = append(sites, siteStats{
			site:   site,
			pValue: number(fields["p-value"]),
			alpha:  number(fields["alpha"]),
			beta:   number(fields["beta"]),
		})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].site < sites[j].site })
	return sites, nil
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
