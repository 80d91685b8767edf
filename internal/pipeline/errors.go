package pipeline

import (
	"fmt"
	"strings"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// AllMethodsFailedError reports that every fallback stage failed. The
// attempt trail is preserved in priority order so callers can show what
// was tried and why each try failed.
type AllMethodsFailedError struct {
	Attempts []docmodel.Attempt
}

func (e *AllMethodsFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Method, a.Error))
	}
	return "all extraction methods failed: " + strings.Join(parts, "; ")
}
