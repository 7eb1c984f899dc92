package weave

import (
	"errors"
	"fmt"

	"varweave/internal/metadata"
)

// ErrNestingCycle is returned when a type is reachable twice through the
// nested-type relation. The module is malformed and is left untouched.
var ErrNestingCycle = errors.New("type nesting graph is not a tree")

// BuildCatalog flattens every type of m, nested types included, in
// pre-order: a parent always precedes its children and siblings keep their
// declared order. It uses an explicit stack so nesting depth is not bounded
// by the goroutine stack.
func BuildCatalog(m *metadata.Module) ([]*metadata.Type, error) {
	if m == nil {
		return nil, nil
	}

	var (
		catalog []*metadata.Type
		seen    = make(map[*metadata.Type]struct{})
		stack   []*metadata.Type
	)

	pushReversed := func(types []*metadata.Type) {
		for i := len(types) - 1; i >= 0; i-- {
			stack = append(stack, types[i])
		}
	}

	pushReversed(m.Types)
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t == nil {
			continue
		}
		if _, dup := seen[t]; dup {
			// Name only: FullName would follow the declaring chain, which may
			// itself be cyclic here.
			return nil, fmt.Errorf("%w: type %q reached more than once", ErrNestingCycle, t.Name)
		}
		seen[t] = struct{}{}
		catalog = append(catalog, t)
		pushReversed(t.NestedTypes)
	}
	return catalog, nil
}
