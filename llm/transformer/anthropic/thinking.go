package anthropic

// Default reasoning effort to thinking budget mapping. Budgets above the
// medium tier force the provider to allocate most of max_tokens to thinking,
// so the defaults stay conservative.
const (
	thinkingBudgetLow    = 5000
	thinkingBudgetMedium = 15000
	thinkingBudgetHigh   = 30000
)

// getThinkingBudgetTokensWithConfig maps a reasoning effort to a thinking
// token budget, honoring the config override map when present.
func getThinkingBudgetTokensWithConfig(effort string, config *Config) int64 {
	if config != nil && config.ReasoningEffortToBudget != nil {
		if budget, ok := config.ReasoningEffortToBudget[effort]; ok {
			return budget
		}
	}

	switch effort {
	case "low":
		return thinkingBudgetLow
	case "medium":
		return thinkingBudgetMedium
	case "high":
		return thinkingBudgetHigh
	default:
		return thinkingBudgetMedium
	}
}

// thinkingBudgetToReasoningEffort maps a thinking token budget back to the
// closest reasoning effort level.
func thinkingBudgetToReasoningEffort(budgetTokens int64) string {
	switch {
	case budgetTokens <= thinkingBudgetLow:
		return "low"
	case budgetTokens <= thinkingBudgetMedium:
		return "medium"
	default:
		return "high"
	}
}
