package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var ErrCycleOrMissing = errors.New("circular or missing dependencies")

// SchedulingError 依赖图无法调度，Unresolved包含所有无法排序的组件(已排序)
type SchedulingError struct {
	Kind       error
	Unresolved []string
}

func (e *SchedulingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: [%s]", e.Kind.Error(), strings.Join(e.Unresolved, ", "))
}

func (e *SchedulingError) Unwrap() error { return e.Kind }
