package plugin

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// loadOrder sorts manifests so every plugin follows its dependencies.
//
// Hard dependencies that are missing, failed or cyclic fail the dependent
// plugin. Soft dependencies only order plugins that are present; a soft edge
// that would close a cycle is ignored. Ties are broken by name.
func loadOrder(manifests map[string]*Manifest) ([]string, map[string]error) {
	const (
		unvisited = iota
		visiting
		done
	)

	var (
		order  []string
		failed = make(map[string]error)
		marks  = make(map[string]int)
		stack  []string
	)

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return failed[name]
		case visiting:
			i := slices.Index(stack, name)
			cycle := append(slices.Clone(stack[i:]), name)
			return fmt.Errorf("%w: %s", ErrCyclicDependency, strings.Join(cycle, " -> "))
		}

		marks[name] = visiting
		stack = append(stack, name)
		defer func() {
			stack = stack[:len(stack)-1]
			marks[name] = done
		}()

		m := manifests[name]
		var err error
		for _, dep := range slices.Sorted(slices.Values(m.Depend)) {
			if _, ok := manifests[dep]; !ok {
				err = fmt.Errorf("%w: %s requires %s", ErrDependencyNotFound, name, dep)
				break
			}
			if depErr := visit(dep); depErr != nil {
				err = fmt.Errorf("%s requires %s: %w", name, dep, depErr)
				break
			}
		}
		if err == nil {
			for _, dep := range slices.Sorted(slices.Values(m.SoftDepend)) {
				if _, ok := manifests[dep]; ok && marks[dep] != visiting {
					_ = visit(dep)
				}
			}
		}

		if err != nil {
			failed[name] = err
			return err
		}
		order = append(order, name)
		return nil
	}

	for _, name := range slices.Sorted(maps.Keys(manifests)) {
		_ = visit(name)
	}
	return order, failed
}
