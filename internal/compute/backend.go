package compute

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/gravity"
)

// Backend turns the body set at the start of a step into the force closure
// used by every integrator stage of that step.
type Backend interface {
	Name() string
	Prepare(set *body.Set) (dynamo.AccelFunc, error)
}

type Options struct {
	Params       gravity.Params
	LeafCapacity int
	Pad          float64
	ZOffset      bool
	// CubeRefresh is how many steps a bounding cube may be reused for while
	// every body stays inside it. Values below 2 rebuild it every step.
	CubeRefresh int
}

var backends = map[string]func(Options) Backend{
	"barnes-hut": func(o Options) Backend { return NewBarnesHut(o) },
	"direct":     func(o Options) Backend { return NewDirect(o.Params) },
}

// ByName constructs a backend. The empty name selects barnes-hut.
func ByName(name string, opts Options) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "bh" {
		name = "barnes-hut"
	}
	fn, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", dynamo.ErrParameterBounds, name)
	}
	return fn(opts), nil
}

func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
