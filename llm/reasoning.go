// Reasoning budget derivation shared by adapters that expose a thinking
// token budget.

package llm

const (
	reasoningBudgetMin = 1024
	reasoningBudgetMax = 32000
)

// effortRatios maps a reasoning effort level to the share of the response
// token budget spent on thinking.
var effortRatios = map[string]float64{
	"low":    0.2,
	"medium": 0.5,
	"high":   0.8,
}

// ReasoningBudget derives the thinking token budget for a reasoning-capable
// model: clamp(maxTokens*effortRatio, 1024, 32000). The second return value
// is false when effort is empty or unknown, meaning thinking should stay at
// the vendor default.
func ReasoningBudget(maxTokens int, effort string) (int, bool) {
	ratio, ok := effortRatios[effort]
	if !ok {
		return 0, false
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	budget := int(float64(maxTokens) * ratio)
	if budget < reasoningBudgetMin {
		budget = reasoningBudgetMin
	}
	if budget > reasoningBudgetMax {
		budget = reasoningBudgetMax
	}
	return budget, true
}
