package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Constructor builds the features named by one descriptor from its integer
// arguments.
type Constructor func(args []int) ([]Feature, error)

// Registry maps descriptor names to constructors.
type Registry map[string]Constructor

// DefaultRegistry returns a registry holding the built-in features.
func DefaultRegistry() Registry {
	noArgs := func(f Feature) Constructor {
		return func(args []int) ([]Feature, error) {
			if len(args) != 0 {
				return nil, fmt.Errorf("%s takes no arguments", f.Name())
			}
			return []Feature{f}, nil
		}
	}
	return Registry{
		"AspectRatio":    noArgs(AspectRatio{}),
		"InkDensity":     noArgs(InkDensity{}),
		"PreviousLetter": noArgs(PreviousLetter{}),
		"HistoryLength":  noArgs(HistoryLength{}),
		"Merged":         noArgs(Merged{}),
		"SectionInk": func(args []int) ([]Feature, error) {
			switch len(args) {
			case 2:
				if args[0] < 1 || args[1] < 1 {
					return nil, fmt.Errorf("SectionInk grid must be at least 1x1")
				}
				return SectionInkGrid(args[0], args[1]), nil
			case 4:
				f := SectionInk{Column: args[0], Row: args[1], Columns: args[2], Rows: args[3]}
				if f.Column < 0 || f.Column >= f.Columns || f.Row < 0 || f.Row >= f.Rows {
					return nil, fmt.Errorf("section (%d,%d) outside %dx%d grid", f.Column, f.Row, f.Columns, f.Rows)
				}
				return []Feature{f}, nil
			}
			return nil, fmt.Errorf("SectionInk takes (columns,rows) or (column,row,columns,rows)")
		},
	}
}

// Names lists the registered descriptor names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse builds the feature set described by descriptors, in order. A
// descriptor is a name optionally followed by integer arguments in
// parentheses. Blank descriptors and lines starting with '#' are ignored.
func (r Registry) Parse(descriptors []string) ([]Feature, error) {
	var features []Feature
	for _, d := range descriptors {
		d = strings.TrimSpace(d)
		if d == "" || strings.HasPrefix(d, "#") {
			continue
		}
		name, args, err := splitDescriptor(d)
		if err != nil {
			return nil, err
		}
		ctor, ok := r[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		fs, err := ctor(args)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", d, err)
		}
		features = append(features, fs...)
	}
	return features, nil
}

func splitDescriptor(d string) (string, []int, error) {
	open := strings.IndexByte(d, '(')
	if open < 0 {
		return d, nil, nil
	}
	if !strings.HasSuffix(d, ")") {
		return "", nil, fmt.Errorf("malformed feature descriptor %q", d)
	}
	name := strings.TrimSpace(d[:open])
	inner := strings.TrimSpace(d[open+1 : len(d)-1])
	if inner == "" {
		return name, nil, nil
	}
	parts := strings.Split(inner, ",")
	args := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", nil, fmt.Errorf("feature descriptor %q: argument %d: %w", d, i+1, err)
		}
		args[i] = v
	}
	return name, args, nil
}
