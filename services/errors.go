package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownComponent   = errors.New("unknown component")
	ErrMissingExecutable  = errors.New("missing executable")
	ErrDependencyNotReady = errors.New("dependency not ready")
	ErrStartupFailed      = errors.New("startup failed")
)

/**
 * StartupError 启动循环的汇总错误
 * @property {[]string} Failed - 启动失败的组件，按启动顺序
 * @property {string} Aborted - 导致启动中止的关键组件，为空表示没有中止
 * @property {map[string]error} Causes - 每个失败组件的原因
 */
type StartupError struct {
	Failed  []string
	Aborted string
	Causes  map[string]error
}

func (e *StartupError) Error() string {
	if e.Aborted != "" {
		return fmt.Sprintf("startup aborted, critical component '%s' failed: %v", e.Aborted, e.Causes[e.Aborted])
	}
	return fmt.Sprintf("components failed to start: [%s]", strings.Join(e.Failed, ", "))
}

func (e *StartupError) Unwrap() []error {
	names := make([]string, 0, len(e.Causes))
	for name := range e.Causes {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, e.Causes[name])
	}
	return errs
}
