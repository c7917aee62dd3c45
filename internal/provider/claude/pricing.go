package claude

import (
	"math"
	"sort"
	"strings"
)

// ModelRate holds per-1K-token prices in USD for one model.
type ModelRate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// baselineModel is the rate applied to usage entries without a model tag.
const baselineModel = "claude-sonnet-4-5"

// defaultRates maps model base names to their per-1K-token prices.
var defaultRates = map[string]ModelRate{
	"claude-opus-4-5":   {InputPer1K: 0.005, OutputPer1K: 0.025},
	"claude-opus-4-1":   {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-opus-4":     {InputPer1K: 0.015, OutputPer1K: 0.075},
	"claude-sonnet-4-5": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-sonnet-4":   {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-haiku-4-5":  {InputPer1K: 0.001, OutputPer1K: 0.005},
	"claude-haiku-3-5":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
}

// lookupRate resolves a model's rate, stripping a trailing date suffix
// ("claude-sonnet-4-5-20250929" -> "claude-sonnet-4-5") before falling back
// to the baseline model's rate.
func lookupRate(model string) ModelRate {
	if r, ok := defaultRates[model]; ok {
		return r
	}

	parts := strings.Split(model, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			candidate := strings.Join(parts[:len(parts)-1], "-")
			if r, ok := defaultRates[candidate]; ok {
				return r
			}
		}
	}

	return defaultRates[baselineModel]
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// usageEntry is one token usage record from the API.
type usageEntry struct {
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// modelGroup is the summed token usage for one model.
type modelGroup struct {
	model        string
	inputTokens  int64
	outputTokens int64
}

// groupByModel sums usage entries per model. Entries without a model tag are
// attributed to the baseline model.
func groupByModel(entries []usageEntry) []modelGroup {
	byModel := make(map[string]*modelGroup)
	for _, e := range entries {
		model := e.Model
		if model == "" {
			model = baselineModel
		}
		g, ok := byModel[model]
		if !ok {
			g = &modelGroup{model: model}
			byModel[model] = g
		}
		g.inputTokens += e.InputTokens
		g.outputTokens += e.OutputTokens
	}

	groups := make([]modelGroup, 0, len(byModel))
	for _, g := range byModel {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].model < groups[j].model })
	return groups
}

// costCents computes the USD cost of one model group in cents, rounded to
// the nearest cent.
func costCents(g modelGroup) int {
	rate := lookupRate(g.model)
	usd := float64(g.inputTokens)*rate.InputPer1K/1000 + float64(g.outputTokens)*rate.OutputPer1K/1000
	return int(math.Round(usd * 100))
}
