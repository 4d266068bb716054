package validate

import "fmt"

// RegeneratePolicy decides what happens when an answer is judged High risk.
type RegeneratePolicy string

const (
	// Never returns the answer unchanged; warnings are only logged.
	Never RegeneratePolicy = "never"
	// Once re-asks the model a single time under a stricter prompt.
	Once RegeneratePolicy = "once"
)

func ParsePolicy(s string) (RegeneratePolicy, error) {
	switch RegeneratePolicy(s) {
	case "", Never:
		return Never, nil
	case Once:
		return Once, nil
	default:
		return "", fmt.Errorf("unknown regenerate policy %q", s)
	}
}

// ShouldRegenerate reports whether warnings warrant another attempt.
func (p RegeneratePolicy) ShouldRegenerate(warnings []Warning) bool {
	return p == Once && Risk(warnings) == High
}
