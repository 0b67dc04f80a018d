package tools

import (
	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/mark3labs/mcp-go/mcp"
)

type argKind int

const (
	kindString argKind = iota
	kindNumber
	kindBool
	kindStringList
	kindCompartments
)

// arg describes one method-specific tool argument. Names match the keys
// hyphy.Decode accepts.
type arg struct {
	name string
	kind argKind
	desc string
	enum []string
}

var (
	geneticCode = arg{"genetic_code", kindString, "Genetic code to use (e.g. Universal)", nil}
	yesNo       = []string{"Yes", "No"}
)

var methodArgs = map[hyphy.Method][]arg{
	hyphy.ABSREL: {
		{"branches", kindStringList, "Branches to test", nil},
		{"srv", kindString, "Include synonymous rate variation", yesNo},
		{"multiple_hits", kindString, "Multiple hits model", []string{"None", "Double", "Double+Triple"}},
		geneticCode,
	},
	hyphy.BGM: {
		{"data_type", kindString, "Type of data", []string{"nucleotide", "amino-acid", "codon"}},
		geneticCode,
		{"steps", kindNumber, "Number of MCMC steps to sample", nil},
		{"burn_in", kindNumber, "Number of MCMC steps to discard as burn-in", nil},
		{"samples", kindNumber, "Number of steps to extract from the chain sample", nil},
		{"max_parents", kindNumber, "Maximum number of parents allowed per node", nil},
		{"min_subs", kindNumber, "Minimum number of substitutions per site to include it", nil},
	},
	hyphy.BUSTED: {
		{"branches", kindString, "Branches to test (comma-separated list or 'All')", nil},
	},
	hyphy.ContrastFEL: {
		{"branch_sets", kindStringList, "Sets of branches to compare (required)", nil},
		geneticCode,
		{"srv", kindString, "Include synonymous rate variation", yesNo},
		{"permutations", kindString, "Perform permutation significance tests", yesNo},
		{"p_value", kindNumber, "Significance value for site tests", nil},
		{"q_value", kindNumber, "Significance value for FDR reporting", nil},
	},
	hyphy.FADE: {
		{"bayes_factor_threshold", kindNumber, "Bayes factor threshold for significance", nil},
	},
	hyphy.FEL: {
		{"branches", kindString, "Branches to test (comma-separated list or 'All')", nil},
		{"pvalue", kindNumber, "P-value threshold for significance", nil},
	},
	hyphy.FUBAR: {
		geneticCode,
		{"grid_points", kindNumber, "Number of grid points (5-50)", nil},
		{"concentration_parameter", kindNumber, "Dirichlet prior concentration (0.001-1)", nil},
	},
	hyphy.GARD: {
		geneticCode,
		{"data_type", kindString, "Type of data", []string{"Nucleotide", "Protein"}},
		{"run_mode", kindString, "Run mode", []string{"Normal", "Faster"}},
		{"site_to_site_variation", kindString, "Site-to-site rate variation", []string{"None", "General Discrete", "Beta-Gamma"}},
		{"rate_classes", kindNumber, "Number of rate classes", nil},
		{"model", kindString, "Substitution model", nil},
	},
	hyphy.MEME: {
		{"branches", kindString, "Branches to test (comma-separated list or 'All')", nil},
		{"pvalue", kindNumber, "P-value threshold for significance", nil},
	},
	hyphy.MULTIHIT: {
		geneticCode,
		{"triple_islands", kindString, "Allow triple-hit islands", yesNo},
		{"rate_classes", kindNumber, "Number of rate classes (1-10)", nil},
	},
	hyphy.NRM: {
		geneticCode,
		{"save_fit", kindBool, "Save the model fit", nil},
	},
	hyphy.RELAX: {
		geneticCode,
		{"test_branches", kindStringList, "Branches to treat as 'Test'", nil},
		{"reference_branches", kindStringList, "Branches to treat as 'Reference'", nil},
		{"models", kindString, "Type of analysis to run", []string{"All", "Minimal"}},
		{"rates", kindNumber, "Number of omega rate classes", nil},
		{"kill_zero_lengths", kindString, "Handle zero-length branches", yesNo},
	},
	hyphy.SLAC: {
		geneticCode,
		{"branches", kindString, "Branches to test (comma-separated list or 'All')", nil},
		{"samples", kindNumber, "Number of ancestral reconstruction samples", nil},
		{"pvalue", kindNumber, "P-value threshold for significance (0-1)", nil},
	},
	hyphy.SLATKIN: {
		{"groups", kindNumber, "Number of compartments to test (2-100)", nil},
		{"compartment_definitions", kindCompartments, "Compartments, each with 'description' and 'regexp' fields", nil},
		{"replicates", kindNumber, "Number of bootstrap replicates (1-1000000)", nil},
		{"weight", kindNumber, "Probability of branch selection for structured permutation (0-1)", nil},
		{"use_bootstrap", kindBool, "Use bootstrap weights to respect well-supported clades", nil},
	},
}

var compartmentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
		"regexp":      map[string]any{"type": "string"},
	},
	"required": []string{"description", "regexp"},
}

func fileOption(name, what string, in hyphy.Input) mcp.ToolOption {
	if in == hyphy.Required {
		return mcp.WithString(name, mcp.Required(), mcp.Description("Path to the "+what+" file"))
	}
	return mcp.WithString(name, mcp.Description("Optional path to the "+what+" file"))
}

func (a arg) option() mcp.ToolOption {
	opts := []mcp.PropertyOption{mcp.Description(a.desc)}
	if len(a.enum) > 0 {
		opts = append(opts, mcp.Enum(a.enum...))
	}
	switch a.kind {
	case kindNumber:
		return mcp.WithNumber(a.name, opts...)
	case kindBool:
		return mcp.WithBoolean(a.name, opts...)
	case kindStringList:
		return mcp.WithArray(a.name, append(opts, mcp.Items(map[string]any{"type": "string"}))...)
	case kindCompartments:
		return mcp.WithArray(a.name, append(opts, mcp.Items(compartmentSchema))...)
	}
	return mcp.WithString(a.name, opts...)
}

// startTool builds the start_<method>_job tool for info.
func startTool(info hyphy.MethodInfo) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Start a " + string(info.Name) + " (" + info.FullName + ") analysis on Datamonkey. " +
			info.Description + " Returns a job_id immediately; poll check_datamonkey_job_status for progress."),
	}
	if info.Alignment != hyphy.Unused {
		opts = append(opts, fileOption("alignment_file", "alignment", info.Alignment))
	}
	if info.Tree != hyphy.Unused {
		opts = append(opts, fileOption("tree_file", "tree", info.Tree))
	}
	for _, a := range methodArgs[info.Name] {
		opts = append(opts, a.option())
	}
	return mcp.NewTool("start_"+info.Name.ToolName()+"_job", opts...)
}
