package narrative

import "fmt"

// StepName identifies a node of the generation graph.
type StepName string

const (
	StepExecSummary      StepName = "exec_summary"
	StepTrendExplanation StepName = "trend_explanation"
	StepRiskFlags        StepName = "risk_flags"
	StepBenchmark        StepName = "benchmark"
	StepFinalNarrative   StepName = "final_narrative"
)

// GenerationStep describes one node: what it waits for and what it writes.
type GenerationStep struct {
	Name      StepName
	DependsOn []StepName
	Produces  string
}

// Graph is a set of generation steps in declaration order.
type Graph []GenerationStep

// DefaultGraph returns the fixed narrative topology: the executive summary
// gates three independent sections, which are then consolidated.
func DefaultGraph() Graph {
	return Graph{
		{Name: StepExecSummary, Produces: "exec_summary"},
		{Name: StepTrendExplanation, DependsOn: []StepName{StepExecSummary}, Produces: "trend_explanation"},
		{Name: StepRiskFlags, DependsOn: []StepName{StepExecSummary}, Produces: "risk_analysis"},
		{Name: StepBenchmark, DependsOn: []StepName{StepExecSummary}, Produces: "benchmark_analysis"},
		{
			Name:      StepFinalNarrative,
			DependsOn: []StepName{StepTrendExplanation, StepRiskFlags, StepBenchmark},
			Produces:  "final_narrative",
		},
	}
}

// Has reports whether the graph contains a step called name.
func (g Graph) Has(name StepName) bool {
	for _, s := range g {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Validate checks for duplicate names or outputs, unknown dependencies and cycles.
func (g Graph) Validate() error {
	_, err := g.Order()
	return err
}

// Order returns the steps grouped into layers: every step appears after all
// of its dependencies, and steps within a layer keep declaration order.
func (g Graph) Order() ([][]StepName, error) {
	names := make(map[StepName]bool, len(g))
	outputs := make(map[string]StepName, len(g))
	for _, s := range g {
		if names[s.Name] {
			return nil, fmt.Errorf("duplicate step %q", s.Name)
		}
		names[s.Name] = true
		if prev, ok := outputs[s.Produces]; ok {
			return nil, fmt.Errorf("steps %q and %q both produce %q", prev, s.Name, s.Produces)
		}
		outputs[s.Produces] = s.Name
	}
	for _, s := range g {
		for _, dep := range s.DependsOn {
			if !names[dep] {
				return nil, fmt.Errorf("step %q depends on unknown step %q", s.Name, dep)
			}
		}
	}

	done := make(map[StepName]bool, len(g))
	var layers [][]StepName
	for len(done) < len(g) {
		var layer []StepName
		for _, s := range g {
			if done[s.Name] || !allDone(s.DependsOn, done) {
				continue
			}
			layer = append(layer, s.Name)
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("generation graph has a cycle")
		}
		for _, name := range layer {
			done[name] = true
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

func allDone(deps []StepName, done map[StepName]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}
