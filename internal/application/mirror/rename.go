package mirror

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"sensor-proxy/internal/domain"
)

var (
	ErrEmptyTarget     = errors.New("rename target is empty")
	ErrDuplicateTarget = errors.New("rename target is used more than once")
)

// RenameRule maps upstream sensor names to destination names. Names without an
// explicit entry get the prefix prepended; an explicit entry lists every destination
// name the sensor is mirrored under, and an empty list hides the sensor.
type RenameRule struct {
	prefix  string
	renames map[string][]string
}

// NewRenameRule validates the explicit entries. Empty destination names and a
// destination name claimed by two explicit entries are rejected.
func NewRenameRule(prefix string, renames map[string][]string) (RenameRule, error) {
	rule := RenameRule{prefix: prefix, renames: make(map[string][]string, len(renames))}

	upstream := make([]string, 0, len(renames))
	for name := range renames {
		upstream = append(upstream, name)
	}
	sort.Strings(upstream)

	owner := make(map[string]string)
	for _, name := range upstream {
		targets := renames[name]
		for _, target := range targets {
			if target == "" {
				return RenameRule{}, fmt.Errorf("%w: %q", ErrEmptyTarget, name)
			}
			if prev, ok := owner[target]; ok {
				return RenameRule{}, fmt.Errorf("%w: %q claimed by %q and %q", ErrDuplicateTarget, target, prev, name)
			}
			owner[target] = name
		}
		rule.renames[name] = append([]string(nil), targets...)
	}
	return rule, nil
}

func (r RenameRule) Prefix() string { return r.prefix }

// Names returns the destination names for an upstream sensor.
func (r RenameRule) Names(upstream string) []string {
	if targets, ok := r.renames[upstream]; ok {
		return append([]string(nil), targets...)
	}
	return []string{r.prefix + upstream}
}

// FilterFunc decides whether an upstream sensor is mirrored.
type FilterFunc func(def domain.SensorDefinition) bool

// GlobFilter accepts sensors whose upstream name matches any include pattern (all
// sensors when include is empty) and none of the exclude patterns.
func GlobFilter(include, exclude []string) (FilterFunc, error) {
	for _, pattern := range append(append([]string(nil), include...), exclude...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("filter pattern %q: %w", pattern, err)
		}
	}

	return func(def domain.SensorDefinition) bool {
		if len(include) > 0 && !matchAny(include, def.Name) {
			return false
		}
		return !matchAny(exclude, def.Name)
	}, nil
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
