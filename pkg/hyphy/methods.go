// Package hyphy describes the HyPhy analysis methods served by Datamonkey and
// renders their request payloads. All functions are pure.
package hyphy

import (
	"fmt"
	"strings"
)

// Method is a HyPhy analysis method name as used by Datamonkey.
type Method string

const (
	ABSREL      Method = "ABSREL"
	BGM         Method = "BGM"
	BUSTED      Method = "BUSTED"
	ContrastFEL Method = "CONTRAST-FEL"
	FADE        Method = "FADE"
	FEL         Method = "FEL"
	FUBAR       Method = "FUBAR"
	GARD        Method = "GARD"
	MEME        Method = "MEME"
	MULTIHIT    Method = "MULTIHIT"
	NRM         Method = "NRM"
	RELAX       Method = "RELAX"
	SLAC        Method = "SLAC"
	SLATKIN     Method = "SLATKIN"
)

// Input says whether a method consumes an uploaded file.
type Input int

const (
	Unused Input = iota
	Optional
	Required
)

func (i Input) String() string {
	switch i {
	case Optional:
		return "optional"
	case Required:
		return "required"
	}
	return "unused"
}

// MethodInfo is the static description of a method.
type MethodInfo struct {
	Name        Method `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Alignment   Input  `json:"-"`
	Tree        Input  `json:"-"`
}

// Slug is the lower-case endpoint fragment, e.g. "contrast-fel" for
// POST /methods/contrast-fel-start.
func (m Method) Slug() string {
	return strings.ToLower(string(m))
}

// ToolName is the MCP tool suffix, e.g. "contrast_fel".
func (m Method) ToolName() string {
	return strings.ReplaceAll(m.Slug(), "-", "_")
}

var catalog = []MethodInfo{
	{
		Name:        ABSREL,
		FullName:    "Adaptive Branch-Site Random Effects Likelihood",
		Description: "Tests for evidence of episodic diversifying selection on a per-branch basis",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        BGM,
		FullName:    "Bayesian Graphical Model",
		Description: "Infers patterns of conditional dependence among sites in an alignment",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        BUSTED,
		FullName:    "Branch-Site Unrestricted Statistical Test for Episodic Diversification",
		Description: "Tests for evidence of episodic positive selection on a subset of branches",
		Alignment:   Required,
		Tree:        Optional,
	},
	{
		Name:        ContrastFEL,
		FullName:    "Contrast Fixed Effects Likelihood",
		Description: "Tests for differences in selective pressures between two sets of branches",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        FADE,
		FullName:    "FUBAR Approach to Directional Evolution",
		Description: "Detects directional selection using a Bayesian approach",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        FEL,
		FullName:    "Fixed Effects Likelihood",
		Description: "Detects sites under selection by estimating nonsynonymous and synonymous substitution rates at each site",
		Alignment:   Required,
		Tree:        Optional,
	},
	{
		Name:        FUBAR,
		FullName:    "Fast Unconstrained Bayesian AppRoximation",
		Description: "Detects sites under selection using a Bayesian approach that is typically faster than FEL",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        GARD,
		FullName:    "Genetic Algorithm for Recombination Detection",
		Description: "Identifies recombination breakpoints in an alignment",
		Alignment:   Required,
		Tree:        Unused,
	},
	{
		Name:        MEME,
		FullName:    "Mixed Effects Model of Evolution",
		Description: "Detects sites under episodic selection by allowing the nonsynonymous rate to vary across lineages at individual sites",
		Alignment:   Required,
		Tree:        Optional,
	},
	{
		Name:        MULTIHIT,
		FullName:    "Multi-Hit Model",
		Description: "Fits a codon model that accounts for multiple nucleotide substitutions",
		Alignment:   Required,
		Tree:        Unused,
	},
	{
		Name:        NRM,
		FullName:    "Nucleotide Rate Matrix",
		Description: "Estimates a general nucleotide substitution model from data",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        RELAX,
		FullName:    "Relaxation Test",
		Description: "Tests for relaxation or intensification of selection on a specified set of branches",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        SLAC,
		FullName:    "Single-Likelihood Ancestor Counting",
		Description: "Counts ancestral mutations to infer selection at individual sites",
		Alignment:   Required,
		Tree:        Required,
	},
	{
		Name:        SLATKIN,
		FullName:    "Slatkin's Exact Test",
		Description: "Tests for neutrality using Slatkin's exact test",
		Alignment:   Unused,
		Tree:        Required,
	},
}

var byName = func() map[Method]MethodInfo {
	m := make(map[Method]MethodInfo, len(catalog))
	for _, info := range catalog {
		m[info.Name] = info
	}
	return m
}()

// Methods returns the catalog in alphabetical order.
func Methods() []MethodInfo {
	out := make([]MethodInfo, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for m.
func Lookup(m Method) (MethodInfo, bool) {
	info, ok := byName[m]
	return info, ok
}

// ParseMethod accepts any case and either "CONTRAST-FEL" or "contrast_fel".
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "-")))
	if _, ok := byName[m]; !ok {
		return "", fmt.Errorf("%w: unknown method %q", ErrInvalidParams, s)
	}
	return m, nil
}
