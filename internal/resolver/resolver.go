package resolver

import (
	"sort"

	"fleet-keeper/internal/models"
)

// PresenceFunc 报告组件是否参与调度，返回false的组件被排除
type PresenceFunc func(spec models.ComponentSpec) bool

/**
 * Excluded returns the names of components that take no part in any plan
 * @param {[]models.ComponentSpec} specs - All component definitions
 * @param {PresenceFunc} present - Presence check, nil means every component is present
 * @returns {map[string]bool} Excluded names
 * @description
 * - Only optional components can be excluded; a required component whose
 *   launch target is missing stays in the plan and fails at start
 */
func Excluded(specs []models.ComponentSpec, present PresenceFunc) map[string]bool {
	excluded := make(map[string]bool)
	if present == nil {
		return excluded
	}
	for _, spec := range specs {
		if spec.Optional && !present(spec) {
			excluded[spec.Name] = true
		}
	}
	return excluded
}

/**
 * Resolve computes the startup order of the active components
 * @param {[]models.ComponentSpec} specs - All component definitions
 * @param {PresenceFunc} present - Presence check for optional components
 * @returns {[]string} Names in startup order
 * @returns {error} SchedulingError listing every component that cannot be ordered
 * @description
 * - Removes optional components whose launch target is absent; they count as
 *   satisfied wherever they appear as a dependency
 * - Each round appends every component whose dependencies are all ordered,
 *   sorted by startup delay then name
 * - A round without candidates means a cycle or a dependency on an unknown
 *   component
 */
func Resolve(specs []models.ComponentSpec, present PresenceFunc) ([]string, error) {
	excluded := Excluded(specs, present)

	remaining := make(map[string]models.ComponentSpec, len(specs))
	for _, spec := range specs {
		if !excluded[spec.Name] {
			remaining[spec.Name] = spec
		}
	}

	ordered := make([]string, 0, len(remaining))
	placed := make(map[string]bool, len(remaining))

	for len(remaining) > 0 {
		var ready []models.ComponentSpec
		for _, spec := range remaining {
			if satisfied(spec, placed, excluded) {
				ready = append(ready, spec)
			}
		}

		if len(ready) == 0 {
			unresolved := make([]string, 0, len(remaining))
			for name := range remaining {
				unresolved = append(unresolved, name)
			}
			sort.Strings(unresolved)
			return nil, &SchedulingError{Kind: ErrCycleOrMissing, Unresolved: unresolved}
		}

		sort.Slice(ready, func(i, j int) bool {
			if ready[i].StartupDelay != ready[j].StartupDelay {
				return ready[i].StartupDelay < ready[j].StartupDelay
			}
			return ready[i].Name < ready[j].Name
		})

		for _, spec := range ready {
			ordered = append(ordered, spec.Name)
			placed[spec.Name] = true
			delete(remaining, spec.Name)
		}
	}
	return ordered, nil
}

func satisfied(spec models.ComponentSpec, placed, excluded map[string]bool) bool {
	for _, dep := range spec.DependsOn {
		if !placed[dep] && !excluded[dep] {
			return false
		}
	}
	return true
}

// Dependents returns the components that directly depend on the given one.
func Dependents(specs []models.ComponentSpec, name string) []string {
	var res []string
	for _, spec := range specs {
		for _, dep := range spec.DependsOn {
			if dep == name {
				res = append(res, spec.Name)
				break
			}
		}
	}
	sort.Strings(res)
	return res
}
