// SPDX-License-Identifier: AGPL-3.0-or-later

// Package planner resolves a stage's transitive dependency set into a
// topologically ordered execution plan honoring exclude/allowed/
// skip-dependencies flags. Grounded on the dispatcher's
// dependencies/levels/flatten walk: container stages are expanded into
// their members before the graph is built, stages at the same level
// have no ordering constraint among themselves, and levels are
// flattened with a lexicographic tiebreak for deterministic output.
package planner

// PlanStep is one stage in a Plan, adapted from a deploy-oriented
// plan step shape down to what a stage run needs: a stable id and the
// immediate dependency names that must precede it.
type PlanStep struct {
	Name      string
	Index     int
	DependsOn []string
}

// Plan is the flattened, ordered sequence of stages the executor runs.
type Plan struct {
	Steps []PlanStep
}

// Names returns the plan's stage names in execution order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Name
	}
	return names
}
