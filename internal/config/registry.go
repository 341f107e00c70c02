package config

import (
	"os"
	"os/exec"
	"sort"
	"strings"

	"fleet-keeper/internal/models"
	"fleet-keeper/internal/resolver"
)

// Registry 组件注册表，构造后不再修改
type Registry struct {
	specs      []models.ComponentSpec
	index      map[string]int
	installDir string
}

/**
 * Build and validate the component registry
 * @param {[]models.ComponentSpec} specs - Component definitions in declaration order
 * @param {string} installDir - Installation root, base of relative launch targets
 * @returns {*Registry} Immutable registry
 * @returns {error} ConfigError for empty/duplicate names, empty launch targets,
 *   unknown restart policies, negative delays or references to unknown components
 * @description
 * - Self dependencies are cycles and are left to the resolver
 */
func NewRegistry(specs []models.ComponentSpec, installDir string) (*Registry, error) {
	r := &Registry{
		specs:      make([]models.ComponentSpec, 0, len(specs)),
		index:      make(map[string]int, len(specs)),
		installDir: installDir,
	}
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, invalidf("", "component without name")
		}
		if _, exist := r.index[spec.Name]; exist {
			return nil, invalidf(spec.Name, "duplicate component name")
		}
		if spec.Executable == "" {
			return nil, invalidf(spec.Name, "missing executable")
		}
		switch spec.RestartPolicy {
		case "":
			spec.RestartPolicy = models.RestartManual
		case models.RestartAlways, models.RestartOnFailure, models.RestartManual:
		default:
			return nil, invalidf(spec.Name, "unknown restart policy '%s'", spec.RestartPolicy)
		}
		if spec.StartupDelay < 0 {
			return nil, invalidf(spec.Name, "negative startup delay")
		}
		if spec.Port < 0 || spec.Port > 65535 {
			return nil, invalidf(spec.Name, "invalid port %d", spec.Port)
		}
		if spec.HealthPath != "" && !strings.HasPrefix(spec.HealthPath, "/") {
			spec.HealthPath = "/" + spec.HealthPath
		}
		spec.Args = append([]string(nil), spec.Args...)
		spec.DependsOn = append([]string(nil), spec.DependsOn...)
		r.index[spec.Name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	for _, spec := range r.specs {
		for _, dep := range spec.DependsOn {
			if _, exist := r.index[dep]; !exist {
				return nil, invalidf(spec.Name, "depends on unknown component '%s'", dep)
			}
		}
	}
	return r, nil
}

func (r *Registry) InstallDir() string {
	return r.installDir
}

// Get 返回组件定义的副本
func (r *Registry) Get(name string) (models.ComponentSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return models.ComponentSpec{}, false
	}
	return r.specs[i], true
}

// Specs 按声明顺序返回所有组件定义的副本
func (r *Registry) Specs() []models.ComponentSpec {
	out := make([]models.ComponentSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for _, spec := range r.specs {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

/**
 * Resolve the launch target of a component
 * @param {models.ComponentSpec} spec - Component definition
 * @returns {string} Path of the target that can be spawned
 * @returns {bool} True if the target is a file on disk or a command found in PATH
 * @description
 * - Relative targets are resolved against the installation root first
 * - Bare command names (no path separator) fall back to a PATH lookup
 */
func (r *Registry) ResolveTarget(spec models.ComponentSpec) (string, bool) {
	target := spec.LaunchTarget(r.installDir)
	if target == "" {
		return "", false
	}
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return target, true
	}
	if !strings.ContainsRune(spec.Executable, os.PathSeparator) && !strings.Contains(spec.Executable, "/") {
		if path, err := exec.LookPath(spec.Executable); err == nil {
			return path, true
		}
	}
	return target, false
}

// TargetExists 启动目标是否存在
func (r *Registry) TargetExists(spec models.ComponentSpec) bool {
	_, ok := r.ResolveTarget(spec)
	return ok
}

// Present 可选组件的启动目标不存在时视为被排除
func (r *Registry) Present(spec models.ComponentSpec) bool {
	return !spec.Optional || r.TargetExists(spec)
}

// Excluded 返回被排除的可选组件名集合
func (r *Registry) Excluded() map[string]bool {
	return resolver.Excluded(r.specs, r.Present)
}

// Dependents 直接依赖指定组件的组件名(已排序)
func (r *Registry) Dependents(name string) []string {
	return resolver.Dependents(r.specs, name)
}
