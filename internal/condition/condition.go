// Package condition evaluates the optional `when` guard on recipe steps.
//
// Expressions use govaluate syntax over the recipe variables, e.g.
//
//	use_sidekiq && satisfies(rails_version, '> 5.2')
//
// Variables whose value is "true" or "false" are exposed as booleans;
// everything else is a string. Version helpers compare Ruby-style versions
// ("5.2", "4.4.3", "6.0.0.rc1") through golang.org/x/mod/semver.
package condition

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"golang.org/x/mod/semver"
)

// Functions available to every expression.
var functions = map[string]govaluate.ExpressionFunction{
	"version_compare": func(args ...any) (any, error) {
		a, b, err := twoVersions("version_compare", args)
		if err != nil {
			return nil, err
		}
		return float64(Compare(a, b)), nil
	},
	"version_gt":  versionPredicate("version_gt", func(c int) bool { return c > 0 }),
	"version_gte": versionPredicate("version_gte", func(c int) bool { return c >= 0 }),
	"version_lt":  versionPredicate("version_lt", func(c int) bool { return c < 0 }),
	"version_lte": versionPredicate("version_lte", func(c int) bool { return c <= 0 }),
	"version_eq":  versionPredicate("version_eq", func(c int) bool { return c == 0 }),
	"satisfies": func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("satisfies: want 2 arguments, got %d", len(args))
		}
		v, err := versionArg(args[0])
		if err != nil {
			return nil, fmt.Errorf("satisfies: %w", err)
		}
		req, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("satisfies: requirement must be a string")
		}
		return Satisfies(v, req)
	},
}

// Compile parses expr and reports syntax errors without evaluating it.
func Compile(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	return err
}

// Evaluate returns the boolean value of expr against vars.
// An empty expression is true.
func Evaluate(expr string, vars map[string]string) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", expr, err)
	}

	params := make(map[string]any, len(vars))
	for k, v := range vars {
		switch v {
		case "true":
			params[k] = true
		case "false":
			params[k] = false
		default:
			params[k] = v
		}
	}

	result, err := e.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: result is %T, want bool", expr, result)
	}
	return b, nil
}

// Normalize converts a Ruby-style version into a semver string.
// "5.2" -> "v5.2.0", "5.2.4.3" -> "v5.2.4", "6.0.0.rc1" -> "v6.0.0-rc1".
// Numeric segments past the third are not representable; Compare accounts for them.
// Returns "" when v does not start with a number.
func Normalize(v string) string {
	nums, pre := segments(v)
	if len(nums) == 0 {
		return ""
	}
	core := make([]string, 3)
	for i := range core {
		core[i] = strconv.Itoa(segment(nums, i))
	}
	out := "v" + strings.Join(core, ".")
	if len(pre) > 0 {
		out += "-" + strings.Join(pre, ".")
	}
	if !semver.IsValid(out) {
		return ""
	}
	return out
}

// Compare orders two valid versions the way Gem::Version does:
// numeric segments first, however many there are ("5.2.0.1" > "5.2"),
// then the prerelease tag ("6.0.0.rc1" < "6.0").
func Compare(a, b string) int {
	na, _ := segments(a)
	nb, _ := segments(b)
	for i := range max(len(na), len(nb)) {
		if c := cmp.Compare(segment(na, i), segment(nb, i)); c != 0 {
			return c
		}
	}
	return semver.Compare(Normalize(a), Normalize(b))
}

// segments splits v into its leading numeric segments and the remainder.
func segments(v string) (nums []int, pre []string) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nums, parts[i:]
		}
		nums = append(nums, n)
	}
	return nums, nil
}

// segment returns nums[i], or 0 past the end.
func segment(nums []int, i int) int {
	if i < len(nums) {
		return nums[i]
	}
	return 0
}

// Satisfies checks version v against a single requirement such as "> 5.2",
// ">= 4.0", "= 1.2.3", "!= 2" or the pessimistic "~> 4.4.3".
// A bare version means "=".
func Satisfies(v, requirement string) (bool, error) {
	if Normalize(v) == "" {
		return false, fmt.Errorf("invalid version %q", v)
	}

	req := strings.TrimSpace(requirement)
	op := "="
	for _, candidate := range []string{"~>", ">=", "<=", "!=", ">", "<", "="} {
		if strings.HasPrefix(req, candidate) {
			op = candidate
			req = strings.TrimSpace(strings.TrimPrefix(req, candidate))
			break
		}
	}
	if Normalize(req) == "" {
		return false, fmt.Errorf("invalid requirement %q", requirement)
	}

	c := Compare(v, req)
	switch op {
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case "!=":
		return c != 0, nil
	case "~>":
		return c >= 0 && Compare(v, pessimisticCeiling(req)) < 0, nil
	default:
		return c == 0, nil
	}
}

// pessimisticCeiling returns the exclusive upper bound for "~> req":
// drop the last segment and bump the one before it ("4.4.3" -> v4.5.0, "4.7" -> v5.0.0).
func pessimisticCeiling(req string) string {
	parts := strings.Split(strings.TrimPrefix(req, "v"), ".")
	if len(parts) > 1 {
		parts = parts[:len(parts)-1]
	}
	last, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return Normalize(req)
	}
	parts[len(parts)-1] = strconv.Itoa(last + 1)
	return Normalize(strings.Join(parts, "."))
}

func versionPredicate(name string, ok func(int) bool) govaluate.ExpressionFunction {
	return func(args ...any) (any, error) {
		a, b, err := twoVersions(name, args)
		if err != nil {
			return nil, err
		}
		return ok(Compare(a, b)), nil
	}
}

func twoVersions(name string, args []any) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s: want 2 arguments, got %d", name, len(args))
	}
	a, err := versionArg(args[0])
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", name, err)
	}
	b, err := versionArg(args[1])
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", name, err)
	}
	return a, b, nil
}

// versionArg accepts strings and the float64 govaluate produces for bare numbers.
func versionArg(arg any) (string, error) {
	switch v := arg.(type) {
	case string:
		if Normalize(v) == "" {
			return "", fmt.Errorf("invalid version %q", v)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("version must be a string or number, got %T", arg)
	}
}
