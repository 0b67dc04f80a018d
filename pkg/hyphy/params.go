package hyphy

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidParams is returned for parameter values Datamonkey would reject.
var ErrInvalidParams = errors.New("invalid method parameters")

// Params is the method-specific part of a job request. Optional fields are
// pointers; a nil field is never sent.
type Params interface {
	Method() Method
	Validate() error
	// Fields returns only the parameters that were explicitly supplied.
	Fields() map[string]any
}

var (
	yesNo          = []string{"Yes", "No"}
	multipleHits   = []string{"None", "Double", "Double+Triple"}
	bgmDataTypes   = []string{"nucleotide", "amino-acid", "codon"}
	gardDataTypes  = []string{"Nucleotide", "Protein"}
	gardRunModes   = []string{"Normal", "Faster"}
	gardVariation  = []string{"None", "General Discrete", "Beta-Gamma"}
	relaxModelSets = []string{"All", "Minimal"}
)

type ABSRELParams struct {
	Branches     []string `json:"branches,omitempty"`
	SRV          *string  `json:"srv,omitempty"`
	MultipleHits *string  `json:"multiple_hits,omitempty"`
	GeneticCode  *string  `json:"genetic_code,omitempty"`
}

func (ABSRELParams) Method() Method { return ABSREL }

func (p ABSRELParams) Validate() error {
	if err := oneOf("srv", p.SRV, yesNo); err != nil {
		return err
	}
	return oneOf("multiple_hits", p.MultipleHits, multipleHits)
}

func (p ABSRELParams) Fields() map[string]any {
	f := map[string]any{}
	putSlice(f, "branches", p.Branches)
	put(f, "srv", p.SRV)
	put(f, "multiple_hits", p.MultipleHits)
	put(f, "genetic_code", p.GeneticCode)
	return f
}

type BGMParams struct {
	DataType    *string `json:"data_type,omitempty"`
	GeneticCode *string `json:"genetic_code,omitempty"`
	Steps       *int    `json:"steps,omitempty"`
	BurnIn      *int    `json:"burn_in,omitempty"`
	Samples     *int    `json:"samples,omitempty"`
	MaxParents  *int    `json:"max_parents,omitempty"`
	MinSubs     *int    `json:"min_subs,omitempty"`
}

func (BGMParams) Method() Method { return BGM }

func (p BGMParams) Validate() error {
	if err := oneOf("data_type", p.DataType, bgmDataTypes); err != nil {
		return err
	}
	for name, v := range map[string]*int{"steps": p.Steps, "samples": p.Samples, "max_parents": p.MaxParents, "min_subs": p.MinSubs} {
		if err := atLeast(name, v, 1); err != nil {
			return err
		}
	}
	return atLeast("burn_in", p.BurnIn, 0)
}

func (p BGMParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "data_type", p.DataType)
	put(f, "genetic_code", p.GeneticCode)
	put(f, "steps", p.Steps)
	put(f, "burn_in", p.BurnIn)
	put(f, "samples", p.Samples)
	put(f, "max_parents", p.MaxParents)
	put(f, "min_subs", p.MinSubs)
	return f
}

type BUSTEDParams struct {
	Branches *string `json:"branches,omitempty"`
}

func (BUSTEDParams) Method() Method { return BUSTED }

func (BUSTEDParams) Validate() error { return nil }

func (p BUSTEDParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "branches", p.Branches)
	return f
}

type ContrastFELParams struct {
	BranchSets   []string `json:"branch_sets,omitempty"`
	GeneticCode  *string  `json:"genetic_code,omitempty"`
	SRV          *string  `json:"srv,omitempty"`
	Permutations *string  `json:"permutations,omitempty"`
	PValue       *float64 `json:"p_value,omitempty"`
	QValue       *float64 `json:"q_value,omitempty"`
}

func (ContrastFELParams) Method() Method { return ContrastFEL }

func (p ContrastFELParams) Validate() error {
	if len(p.BranchSets) == 0 {
		return fmt.Errorf("%w: branch_sets is required", ErrInvalidParams)
	}
	if err := oneOf("srv", p.SRV, yesNo); err != nil {
		return err
	}
	if err := oneOf("permutations", p.Permutations, yesNo); err != nil {
		return err
	}
	if err := between("p_value", p.PValue, 0, 1); err != nil {
		return err
	}
	return between("q_value", p.QValue, 0, 1)
}

func (p ContrastFELParams) Fields() map[string]any {
	f := map[string]any{}
	putSlice(f, "branch_sets", p.BranchSets)
	put(f, "genetic_code", p.GeneticCode)
	put(f, "srv", p.SRV)
	put(f, "permutations", p.Permutations)
	put(f, "p_value", p.PValue)
	put(f, "q_value", p.QValue)
	return f
}

type FADEParams struct {
	BayesFactorThreshold *int `json:"bayes_factor_threshold,omitempty"`
}

func (FADEParams) Method() Method { return FADE }

func (p FADEParams) Validate() error {
	return atLeast("bayes_factor_threshold", p.BayesFactorThreshold, 1)
}

func (p FADEParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "bayes_factor_threshold", p.BayesFactorThreshold)
	return f
}

// SiteParams is shared by FEL and MEME, which take the same inputs.
type SiteParams struct {
	Branches *string  `json:"branches,omitempty"`
	PValue   *float64 `json:"pvalue,omitempty"`
}

func (p SiteParams) validate() error {
	return between("pvalue", p.PValue, 0, 1)
}

func (p SiteParams) fields() map[string]any {
	f := map[string]any{}
	put(f, "branches", p.Branches)
	put(f, "pvalue", p.PValue)
	return f
}

type FELParams struct{ SiteParams }

func (FELParams) Method() Method           { return FEL }
func (p FELParams) Validate() error        { return p.validate() }
func (p FELParams) Fields() map[string]any { return p.fields() }

type MEMEParams struct{ SiteParams }

func (MEMEParams) Method() Method           { return MEME }
func (p MEMEParams) Validate() error        { return p.validate() }
func (p MEMEParams) Fields() map[string]any { return p.fields() }

type FUBARParams struct {
	GeneticCode            *string  `json:"genetic_code,omitempty"`
	GridPoints             *int     `json:"grid_points,omitempty"`
	ConcentrationParameter *float64 `json:"concentration_parameter,omitempty"`
}

func (FUBARParams) Method() Method { return FUBAR }

func (p FUBARParams) Validate() error {
	if p.GridPoints != nil && (*p.GridPoints < 5 || *p.GridPoints > 50) {
		return fmt.Errorf("%w: grid_points must be between 5 and 50", ErrInvalidParams)
	}
	return between("concentration_parameter", p.ConcentrationParameter, 0.001, 1)
}

func (p FUBARParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	put(f, "grid_points", p.GridPoints)
	put(f, "concentration_parameter", p.ConcentrationParameter)
	return f
}

type GARDParams struct {
	GeneticCode         *string `json:"genetic_code,omitempty"`
	DataType            *string `json:"data_type,omitempty"`
	RunMode             *string `json:"run_mode,omitempty"`
	SiteToSiteVariation *string `json:"site_to_site_variation,omitempty"`
	RateClasses         *int    `json:"rate_classes,omitempty"`
	Model               *string `json:"model,omitempty"`
}

func (GARDParams) Method() Method { return GARD }

func (p GARDParams) Validate() error {
	if err := oneOf("data_type", p.DataType, gardDataTypes); err != nil {
		return err
	}
	if err := oneOf("run_mode", p.RunMode, gardRunModes); err != nil {
		return err
	}
	if err := oneOf("site_to_site_variation", p.SiteToSiteVariation, gardVariation); err != nil {
		return err
	}
	return atLeast("rate_classes", p.RateClasses, 1)
}

func (p GARDParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	put(f, "data_type", p.DataType)
	put(f, "run_mode", p.RunMode)
	put(f, "site_to_site_variation", p.SiteToSiteVariation)
	put(f, "rate_classes", p.RateClasses)
	put(f, "model", p.Model)
	return f
}

type MULTIHITParams struct {
	GeneticCode   *string `json:"genetic_code,omitempty"`
	TripleIslands *string `json:"triple_islands,omitempty"`
	RateClasses   *int    `json:"rate_classes,omitempty"`
}

func (MULTIHITParams) Method() Method { return MULTIHIT }

func (p MULTIHITParams) Validate() error {
	if err := oneOf("triple_islands", p.TripleIslands, yesNo); err != nil {
		return err
	}
	if p.RateClasses != nil && (*p.RateClasses < 1 || *p.RateClasses > 10) {
		return fmt.Errorf("%w: rate_classes must be between 1 and 10", ErrInvalidParams)
	}
	return nil
}

func (p MULTIHITParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	put(f, "triple_islands", p.TripleIslands)
	put(f, "rate_classes", p.RateClasses)
	return f
}

type NRMParams struct {
	GeneticCode *string `json:"genetic_code,omitempty"`
	SaveFit     *bool   `json:"save_fit,omitempty"`
}

func (NRMParams) Method() Method { return NRM }

func (NRMParams) Validate() error { return nil }

func (p NRMParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	put(f, "save_fit", p.SaveFit)
	return f
}

type RELAXParams struct {
	GeneticCode       *string  `json:"genetic_code,omitempty"`
	TestBranches      []string `json:"test_branches,omitempty"`
	ReferenceBranches []string `json:"reference_branches,omitempty"`
	Models            *string  `json:"models,omitempty"`
	Rates             *int     `json:"rates,omitempty"`
	KillZeroLengths   *string  `json:"kill_zero_lengths,omitempty"`
}

func (RELAXParams) Method() Method { return RELAX }

func (p RELAXParams) Validate() error {
	if err := oneOf("models", p.Models, relaxModelSets); err != nil {
		return err
	}
	if err := oneOf("kill_zero_lengths", p.KillZeroLengths, yesNo); err != nil {
		return err
	}
	return atLeast("rates", p.Rates, 1)
}

func (p RELAXParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	putSlice(f, "test_branches", p.TestBranches)
	putSlice(f, "reference_branches", p.ReferenceBranches)
	put(f, "models", p.Models)
	put(f, "rates", p.Rates)
	put(f, "kill_zero_lengths", p.KillZeroLengths)
	return f
}

type SLACParams struct {
	GeneticCode *string  `json:"genetic_code,omitempty"`
	Branches    *string  `json:"branches,omitempty"`
	Samples     *int     `json:"samples,omitempty"`
	PValue      *float64 `json:"pvalue,omitempty"`
}

func (SLACParams) Method() Method { return SLAC }

func (p SLACParams) Validate() error {
	if p.Samples != nil && *p.Samples < 1 {
		return fmt.Errorf("%w: samples must be at least 1", ErrInvalidParams)
	}
	return between("pvalue", p.PValue, 0, 1)
}

func (p SLACParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "genetic_code", p.GeneticCode)
	put(f, "branches", p.Branches)
	put(f, "samples", p.Samples)
	put(f, "pvalue", p.PValue)
	return f
}

// Compartment is one SLATKIN group, matched against leaf names.
type Compartment struct {
	Description string `json:"description"`
	Regexp      string `json:"regexp"`
}

type SLATKINParams struct {
	Groups                 *int          `json:"groups,omitempty"`
	CompartmentDefinitions []Compartment `json:"compartment_definitions,omitempty"`
	Replicates             *int          `json:"replicates,omitempty"`
	Weight                 *float64      `json:"weight,omitempty"`
	UseBootstrap           *bool         `json:"use_bootstrap,omitempty"`
}

func (SLATKINParams) Method() Method { return SLATKIN }

func (p SLATKINParams) Validate() error {
	if p.Groups != nil && (*p.Groups < 2 || *p.Groups > 100) {
		return fmt.Errorf("%w: groups must be between 2 and 100", ErrInvalidParams)
	}
	if p.Replicates != nil && (*p.Replicates < 1 || *p.Replicates > 1000000) {
		return fmt.Errorf("%w: replicates must be between 1 and 1000000", ErrInvalidParams)
	}
	if err := between("weight", p.Weight, 0, 1); err != nil {
		return err
	}
	for _, c := range p.CompartmentDefinitions {
		if c.Description == "" || c.Regexp == "" {
			return fmt.Errorf("%w: each compartment definition must have 'description' and 'regexp' fields", ErrInvalidParams)
		}
	}
	return nil
}

func (p SLATKINParams) Fields() map[string]any {
	f := map[string]any{}
	put(f, "groups", p.Groups)
	if p.CompartmentDefinitions != nil {
		f["compartment_definitions"] = p.CompartmentDefinitions
	}
	put(f, "replicates", p.Replicates)
	put(f, "weight", p.Weight)
	put(f, "use_bootstrap", p.UseBootstrap)
	return f
}

func put[T any](f map[string]any, key string, v *T) {
	if v != nil {
		f[key] = *v
	}
}

func putSlice(f map[string]any, key string, v []string) {
	if v != nil {
		f[key] = v
	}
}

func oneOf(name string, v *string, allowed []string) error {
	if v == nil || slices.Contains(allowed, *v) {
		return nil
	}
	return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidParams, name, allowed, *v)
}

func atLeast(name string, v *int, min int) error {
	if v == nil || *v >= min {
		return nil
	}
	return fmt.Errorf("%w: %s must be at least %d", ErrInvalidParams, name, min)
}

func between(name string, v *float64, lo, hi float64) error {
	if v == nil || (*v >= lo && *v <= hi) {
		return nil
	}
	return fmt.Errorf("%w: %s must be between %g and %g", ErrInvalidParams, name, lo, hi)
}
