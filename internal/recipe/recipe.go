// Package recipe loads, validates and resolves recipes: named, ordered step
// lists with default variables. Recipes come from YAML or TOML files, or are
// built in.
package recipe

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/NielsdaWheelz/stencil/internal/condition"
	"github.com/NielsdaWheelz/stencil/internal/errors"
	"github.com/NielsdaWheelz/stencil/internal/fs"
	"github.com/NielsdaWheelz/stencil/internal/step"
)

// BuiltinPrefix selects a built-in recipe, e.g. "builtin:rails".
const BuiltinPrefix = "builtin:"

// Format is a recipe file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Recipe is a named, ordered list of steps.
type Recipe struct {
	Name        string            `yaml:"name" toml:"name"`
	Description string            `yaml:"description,omitempty" toml:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty" toml:"vars,omitempty"`
	Steps       []step.Step       `yaml:"steps" toml:"steps"`
}

// FormatFor maps a file extension to a format.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// Parse decodes a recipe. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Recipe, error) {
	var r Recipe
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&r); err != nil {
			if err == io.EOF {
				return nil, errors.New(errors.EInvalidRecipe, "recipe is empty")
			}
			return nil, errors.Wrap(errors.EInvalidRecipe, "invalid recipe YAML: "+err.Error(), err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &r)
		if err != nil {
			return nil, errors.Wrap(errors.EInvalidRecipe, "invalid recipe TOML: "+err.Error(), err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, errors.NewWithDetails(errors.EInvalidRecipe, "unknown recipe fields",
				map[string]string{"fields": strings.Join(keys, ", ")})
		}
	default:
		return nil, errors.Newf(errors.EInvalidRecipe, "unsupported recipe format %q", format)
	}
	return &r, nil
}

// Load reads and validates the recipe at path.
// A Rails application template (.rb) selects the built-in rails recipe,
// with the file's directory serving as the template source.
func Load(fsys fs.FS, path string, cmds Commands) (*Recipe, error) {
	if strings.EqualFold(filepath.Ext(path), ".rb") {
		return Rails(cmds), nil
	}
	format, ok := FormatFor(path)
	if !ok {
		return nil, errors.NewWithDetails(errors.EInvalidRecipe, "unsupported recipe file extension",
			map[string]string{"path": path, "supported": ".yaml, .yml, .toml, .rb"})
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithDetails(errors.ERecipeNotFound, "failed to read recipe", err,
			map[string]string{"path": path})
	}
	r, err := Parse(data, format)
	if err != nil {
		return nil, errors.WithDetail(err, "path", path)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.Validate(); err != nil {
		return nil, errors.WithDetail(err, "path", path)
	}
	return r, nil
}

// IsBuiltin reports whether ref names a built-in recipe.
func IsBuiltin(ref string) bool {
	return strings.HasPrefix(ref, BuiltinPrefix)
}

// Builtin returns the built-in recipe named by ref ("builtin:rails" or "rails").
func Builtin(ref string, cmds Commands) (*Recipe, error) {
	name := strings.TrimPrefix(ref, BuiltinPrefix)
	switch name {
	case "rails":
		return Rails(cmds), nil
	}
	return nil, errors.NewWithDetails(errors.ERecipeNotFound, "unknown built-in recipe",
		map[string]string{"name": name, "available": strings.Join(BuiltinNames(), ", ")})
}

// BuiltinNames lists built-in recipe names.
func BuiltinNames() []string {
	return []string{"rails"}
}

// Validate checks every step. Errors are E_INVALID_RECIPE with step_index.
func (r *Recipe) Validate() error {
	if len(r.Steps) == 0 {
		return errors.New(errors.EInvalidRecipe, "recipe has no steps")
	}
	for name := range r.Vars {
		if !validVarName.MatchString(name) {
			return errors.NewWithDetails(errors.EInvalidRecipe, "invalid variable name",
				map[string]string{"var": name})
		}
	}
	for i, s := range r.Steps {
		if err := s.Validate(); err != nil {
			return stepError(i, s, err.Error())
		}
		if err := condition.Compile(s.When); err != nil {
			return stepError(i, s, fmt.Sprintf("invalid when expression: %v", err))
		}
	}
	return nil
}

func stepError(i int, s step.Step, msg string) error {
	details := map[string]string{"step_index": strconv.Itoa(i)}
	if s.Name != "" {
		details["step"] = s.Name
	}
	return errors.NewWithDetails(errors.EInvalidRecipe, msg, details)
}

var validVarName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseVars parses repeated "key=value" flags. Later keys win.
func ParseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || !validVarName.MatchString(k) {
			return nil, errors.NewWithDetails(errors.EInvalidVariable, "variables must be key=value",
				map[string]string{"var": p})
		}
		out[k] = v
	}
	return out, nil
}

// MergeVars layers maps left to right; later maps override earlier ones.
func MergeVars(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// SortedVarNames returns the keys of vars in order, for display.
func SortedVarNames(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
