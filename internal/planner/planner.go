// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"fmt"
	"sort"

	"atlas/internal/pipeline"
	"atlas/internal/registry"
)

// Planner computes a Plan from a registry of stage factories. It only
// needs enough of each stage's identity (Name/Dependencies/
// IsContainer/Members) to build the graph; it builds each stage from
// the deps bundle it was given but calls only those accessors, which
// are side-effect-free.
type Planner struct {
	Registry *registry.Registry
	Deps     pipeline.Deps
}

// New builds a Planner over reg.
func New(reg *registry.Registry, deps pipeline.Deps) *Planner {
	return &Planner{Registry: reg, Deps: deps}
}

func (p *Planner) build(name string) (pipeline.Stage, error) {
	stage, err := p.Registry.Build(name, p.Deps)
	if err != nil {
		return nil, err
	}
	return stage, nil
}

// Plan resolves root's transitive dependencies into a flattened,
// level-then-name ordered sequence. exclude names stages to drop from
// the result, a container name standing for its whole expansion;
// skipDependencies keeps only root's own expansion and ignores exclude.
func (p *Planner) Plan(root string, exclude []string, skipDependencies bool) (*Plan, error) {
	leaves := map[string]bool{}
	edges := map[string][]string{}
	visited := map[string]bool{}

	var visit func(name string) ([]string, error)
	visit = func(name string) ([]string, error) {
		stage, err := p.build(name)
		if err != nil {
			return nil, err
		}

		if stage.IsContainer() {
			var expanded []string
			for _, member := range stage.Members() {
				sub, err := visit(member)
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, sub...)
			}
			return expanded, nil
		}

		if !visited[name] {
			visited[name] = true
			leaves[name] = true
			for _, dep := range stage.Dependencies() {
				depLeaves, err := visit(dep)
				if err != nil {
					return nil, err
				}
				edges[name] = append(edges[name], depLeaves...)
			}
		}
		return []string{name}, nil
	}

	rootLeaves, err := visit(root)
	if err != nil {
		return nil, err
	}

	expandedExclude, err := p.expandNames(exclude)
	if err != nil {
		return nil, err
	}

	var kept []string
	if skipDependencies {
		seen := map[string]bool{}
		for _, n := range rootLeaves {
			if !seen[n] {
				seen[n] = true
				kept = append(kept, n)
			}
		}
	} else {
		for n := range leaves {
			if !expandedExclude[n] {
				kept = append(kept, n)
			}
		}
	}

	if len(kept) == 0 {
		return nil, pipeline.NewInvalidState(fmt.Sprintf("plan for %q is empty after filtering", root))
	}

	keptSet := make(map[string]bool, len(kept))
	for _, n := range kept {
		keptSet[n] = true
	}

	levels, err := computeLevels(kept, edges)
	if err != nil {
		return nil, err
	}

	ordered := flatten(levels)

	steps := make([]PlanStep, 0, len(ordered))
	for i, name := range ordered {
		deps := make([]string, 0, len(edges[name]))
		for _, d := range edges[name] {
			if keptSet[d] {
				deps = append(deps, d)
			}
		}
		sort.Strings(deps)
		steps = append(steps, PlanStep{Name: name, Index: i, DependsOn: deps})
	}

	return &Plan{Steps: steps}, nil
}

// expandNames walks container stages into their constituent leaf
// stage names, without following dependency edges.
func (p *Planner) expandNames(names []string) (map[string]bool, error) {
	out := map[string]bool{}

	var expand func(name string) error
	expand = func(name string) error {
		stage, err := p.build(name)
		if err != nil {
			return err
		}
		if stage.IsContainer() {
			for _, member := range stage.Members() {
				if err := expand(member); err != nil {
					return err
				}
			}
			return nil
		}
		out[name] = true
		return nil
	}

	for _, n := range names {
		if err := expand(n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// computeLevels assigns each kept node a level: 0 for no kept
// dependencies, otherwise 1 + max(level of its kept dependencies).
func computeLevels(kept []string, edges map[string][]string) (map[int][]string, error) {
	keptSet := make(map[string]bool, len(kept))
	for _, n := range kept {
		keptSet[n] = true
	}

	memo := map[string]int{}
	inProgress := map[string]bool{}

	var level func(name string) (int, error)
	level = func(name string) (int, error) {
		if l, ok := memo[name]; ok {
			return l, nil
		}
		if inProgress[name] {
			return 0, fmt.Errorf("planner: dependency cycle detected at %q", name)
		}
		inProgress[name] = true
		defer delete(inProgress, name)

		max := -1
		for _, dep := range edges[name] {
			if !keptSet[dep] {
				continue
			}
			l, err := level(dep)
			if err != nil {
				return 0, err
			}
			if l > max {
				max = l
			}
		}
		result := max + 1
		memo[name] = result
		return result, nil
	}

	levels := map[int][]string{}
	for _, name := range kept {
		l, err := level(name)
		if err != nil {
			return nil, err
		}
		levels[l] = append(levels[l], name)
	}
	return levels, nil
}

// flatten orders levels ascending and sorts each level's names
// lexicographically, giving a deterministic sequence for identical
// inputs.
func flatten(levels map[int][]string) []string {
	maxLevel := -1
	for l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
	}

	var out []string
	for l := 0; l <= maxLevel; l++ {
		names := levels[l]
		sort.Strings(names)
		out = append(out, names...)
	}
	return out
}
