package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"zippyst/internal/expr"
)

var (
	// declaration matches `var name = expr` up to the statement end.
	declaration = regexp.MustCompile(`\bvar\s+([^;\r\n]*)`)

	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)

	reference = regexp.MustCompile(`[A-Za-z_$][\w$]*`)
)

// Variables maps script variable names to their evaluated values.
type Variables map[string]int64

// ExtractVariables evaluates every `var` declaration in script, in order.
// A later declaration of the same name replaces the earlier one, and each
// expression may refer to variables declared before it.
func ExtractVariables(script string) (Variables, error) {
	vars := Variables{}
	for _, m := range declaration.FindAllStringSubmatch(script, -1) {
		name, value, ok := strings.Cut(m[1], "=")
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !ok || !identifier.MatchString(name) || value == "" {
			return nil, fmt.Errorf("%w: %q", ErrVariableExtraction, strings.TrimSpace(m[0]))
		}

		v, err := expr.Evaluate(vars.Substitute(value))
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrVariableComputation, name, err)
		}
		vars[name] = v
	}
	return vars, nil
}

// Substitute replaces every whole identifier in text that names a known
// variable with its decimal value. Identifiers are matched in full, so
// `a` never rewrites the inside of `ab`; names following a digit, an
// identifier character or a dot are not references and stay as they are.
func (v Variables) Substitute(text string) string {
	if len(v) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range reference.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isReferenceBoundary(text[start-1]) {
			continue
		}
		value, ok := v[text[start:end]]
		if !ok {
			continue
		}
		b.WriteString(text[last:start])
		if value < 0 {
			b.WriteString("(" + strconv.FormatInt(value, 10) + ")")
		} else {
			b.WriteString(strconv.FormatInt(value, 10))
		}
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isReferenceBoundary(c byte) bool {
	return c == '.' || c == '_' || c == '$' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ComputeKey substitutes vars into keyExpr and evaluates the result.
func ComputeKey(keyExpr string, vars Variables) (int64, error) {
	key, err := expr.Evaluate(vars.Substitute(keyExpr))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLinkComputation, err)
	}
	return key, nil
}
