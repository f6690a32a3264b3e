package recovery

import (
	"fmt"
)

const maxContextValueLen = 200

// Outcome is the explicit result of a guarded operation. A swallowed
// failure carries no error: OK is false and Recovered reports whether
// recovery succeeded. Err is set only for unresolved CRITICAL failures,
// which must propagate to the caller.
type Outcome struct {
	OK        bool
	Recovered bool
	Err       error
}

// Operation describes a unit of work to guard with a recovery manager.
type Operation struct {
	Name     string
	Category Category
	Severity Severity
	Context  map[string]any
	Fn       func() error
}

// Run executes op and routes any failure through the manager. It
// replaces implicit decorator-style interception with an explicit
// wrapper: callers compose it around each fallible operation.
func Run(mgr *Manager, op Operation) Outcome {
	err := op.Fn()
	if err == nil {
		return Outcome{OK: true}
	}

	ctx := map[string]any{"operation": op.Name}
	for k, v := range op.Context {
		if s, ok := v.(string); ok && len(s) > maxContextValueLen {
			v = s[:maxContextValueLen]
		}
		ctx[k] = v
	}

	resolved := mgr.Handle(err, op.Category, op.Severity, ctx)

	if op.Severity == SeverityCritical && !resolved {
		return Outcome{Err: fmt.Errorf("critical failure in %s: %w", op.Name, err)}
	}

	return Outcome{Recovered: resolved}
}

// RunDefault guards fn with the default SYSTEM/MEDIUM classification.
func RunDefault(mgr *Manager, name string, fn func() error) Outcome {
	return Run(mgr, Operation{
		Name:     name,
		Category: DefaultCategory,
		Severity: DefaultSeverity,
		Fn:       fn,
	})
}
