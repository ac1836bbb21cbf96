package narrative

import "fmt"

// StepModels overrides the model preference list per step. Steps without
// an entry use the generator's defaults.
type StepModels map[StepName][]string

// DefaultStepModels keeps the risk step on the free OpenRouter models only.
func DefaultStepModels() StepModels {
	return StepModels{
		StepRiskFlags: {
			"meta-llama/llama-3.3-70b-instruct:free",
			"deepseek/deepseek-r1-0528:free",
		},
	}
}

// prompt builds the typed input of a step from the state and renders it.
func prompt(name StepName, st *State) (Prompt, error) {
	switch name {
	case StepExecSummary:
		return execSummaryPrompt(st.Facts), nil
	case StepTrendExplanation, StepRiskFlags, StepBenchmark:
		b, err := st.Briefing()
		if err != nil {
			return Prompt{}, err
		}
		switch name {
		case StepTrendExplanation:
			return trendPrompt(b), nil
		case StepRiskFlags:
			return riskPrompt(b), nil
		default:
			return benchmarkPrompt(b), nil
		}
	case StepFinalNarrative:
		s, err := st.Sections()
		if err != nil {
			return Prompt{}, err
		}
		return finalPrompt(s), nil
	}
	return Prompt{}, fmt.Errorf("unknown step %q", name)
}

// output returns the field a step writes.
func output(name StepName, st *State) *Field {
	switch name {
	case StepExecSummary:
		return &st.ExecSummary
	case StepTrendExplanation:
		return &st.TrendExplanation
	case StepRiskFlags:
		return &st.RiskAnalysis
	case StepBenchmark:
		return &st.BenchmarkAnalysis
	case StepFinalNarrative:
		return &st.FinalNarrative
	}
	return nil
}
