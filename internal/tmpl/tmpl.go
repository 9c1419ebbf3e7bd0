// Package tmpl renders recipe text and `.tt` template files with pongo2.
package tmpl

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// Suffix marks template files inside copied directories. It is stripped on write.
const Suffix = ".tt"

// Render interpolates {{ var }} and {% tags %} in text using vars.
// Text without template markers is returned as is.
func Render(text string, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{{") && !strings.Contains(text, "{%") {
		return text, nil
	}
	tpl, err := pongo2.FromString(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	out, err := tpl.Execute(context(vars))
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return out, nil
}

// RenderAll renders every string in values, returning a new slice.
func RenderAll(values []string, vars map[string]string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		r, err := Render(v, vars)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// IsTemplate reports whether a copied file should be rendered.
func IsTemplate(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// OutputName strips the template suffix from name.
func OutputName(name string) string {
	return strings.TrimSuffix(name, Suffix)
}

func context(vars map[string]string) pongo2.Context {
	ctx := make(pongo2.Context, len(vars))
	for k, v := range vars {
		ctx[k] = v
	}
	return ctx
}
