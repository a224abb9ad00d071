package runtime

import (
	"context"
	"regexp"
	"strings"
)

// Interpolator resolves placeholders in spoken text.
type Interpolator func(ctx context.Context, text string, data map[string]string) (string, error)

var placeholder = regexp.MustCompile(`\{\{\s*\.?([A-Za-z0-9_.-]+)\s*\}\}`)

// DefaultInterpolator replaces {{name}} (or {{ .name }}) with data[name].
// Unknown names render as empty strings.
func DefaultInterpolator(_ context.Context, text string, data map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		return data[name]
	}), nil
}
