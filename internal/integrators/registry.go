package integrators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/gravsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"rk4":      func() dynamo.Integrator { return NewRK4() },
	"euler":    func() dynamo.Integrator { return NewEuler() },
	"leapfrog": func() dynamo.Integrator { return NewLeapfrog() },
}

// ByName returns a fresh integrator. The empty name selects rk4.
func ByName(name string) (dynamo.Integrator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "rk4"
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q", dynamo.ErrParameterBounds, name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
