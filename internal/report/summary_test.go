package report

import (
	"encoding/json"
	"testing"

	"github.com/kiranshivaraju/hyphy-mcp/pkg/hyphy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const felScenario = `{"MLE": {
	"1": {"p-value": 0.05, "beta": 2, "alpha": 1},
	"2": {"p-value": 0.2, "beta": 1, "alpha": 3}
}}`

func TestSummarize_FELScenario(t *testing.T) {
	got, err := Summarize(hyphy.FEL, json.RawMessage(felScenario), 0.1)
	require.NoError(t, err)

	assert.Equal(t, &FELSummary{
		PositiveSelectionSites: []int{1},
		NegativeSelectionSites: []int{},
		TotalPositiveSites:     1,
		TotalNegativeSites:     0,
	}, got)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"positive_selection_sites":[1],"negative_selection_sites":[],"total_positive_sites":1,"total_negative_sites":0}`, string(b))
}

func TestSummarize_FELPartitions(t *testing.T) {
	results := `{
		"10": {"p-value": 0.01, "beta": 0.5, "alpha": 2},
		"3":  {"p-value": 0.1,  "beta": 4,   "alpha": 1},
		"7":  {"p-value": 0.09, "beta": 1,   "alpha": 1},
		"8":  {"p-value": 0.02, "beta": 3},
		"x":  {"p-value": 0.01, "beta": 3,   "alpha": 1},
		"9":  "not an object"
	}`

	got, err := Summarize(hyphy.FEL, json.RawMessage(results), 0.1)
	require.NoError(t, err)

	s := got.(*FELSummary)
	assert.Equal(t, []int{3}, s.PositiveSelectionSites, "threshold is inclusive")
	assert.Equal(t, []int{7, 10}, s.NegativeSelectionSites, "beta == alpha counts as negative, sorted by site")
	assert.Equal(t, 1, s.TotalPositiveSites)
	assert.Equal(t, 2, s.TotalNegativeSites)
}

func TestSummarize_Idempotent(t *testing.T) {
	for _, m := range []hyphy.Method{hyphy.FEL, hyphy.MEME} {
		t.Run(string(m), func(t *testing.T) {
			first, err := Summarize(m, json.RawMessage(felScenario), 0.1)
			require.NoError(t, err)
			second, err := Summarize(m, json.RawMessage(felScenario), 0.1)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestSummarize_MEME(t *testing.T) {
	results := `{"MLE": {
		"4": {"p-value": 0.04},
		"2": {"p-value": 0.5},
		"1": {"p-value": 0.001}
	}}`

	got, err := Summarize(hyphy.MEME, json.RawMessage(results), 0.05)
	require.NoError(t, err)
	assert.Equal(t, &MEMESummary{EpisodicSelectionSites: []int{1, 4}, TotalSitesUnderSelection: 2}, got)
}

func TestSummarize_OtherMethodsHaveNoSummary(t *testing.T) {
	got, err := Summarize(hyphy.BUSTED, json.RawMessage(`{"anything": true}`), 0.1)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, HasSummary(hyphy.BUSTED))
	assert.True(t, HasSummary(hyphy.FEL))
}

func TestSummarize_Malformed(t *testing.T) {
	_, err := Summarize(hyphy.FEL, json.RawMessage(`[1,2,3]`), 0.1)
	assert.ErrorIs(t, err, ErrMalformedResults)

	_, err = Summarize(hyphy.MEME, json.RawMessage(`{"MLE": [1]}`), 0.1)
	assert.ErrorIs(t, err, ErrMalformedResults)
}
