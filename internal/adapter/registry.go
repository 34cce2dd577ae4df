package adapter

import (
	"sort"
	"time"

	"github.com/openauditlabs/sentry/internal/config"
)

// builtins maps tool names to constructors and kinds. Registration happens
// once per engine; there is no package-level adapter state.
var builtins = map[string]struct {
	build func() Adapter
	kind  Kind
}{
	"slither":          {func() Adapter { return NewSlither() }, KindStatic},
	"mythril":          {func() Adapter { return NewMythril() }, KindStatic},
	"manticore":        {func() Adapter { return NewManticore() }, KindSymbolic},
	"echidna":          {func() Adapter { return NewEchidna() }, KindFuzzing},
	"adversarial-fuzz": {func() Adapter { return NewAdversarialFuzz() }, KindSymbolic},
}

// Registry holds the adapters an engine runs, split by phase. It is built
// once at engine construction and passed by reference into both runners.
type Registry struct {
	static  []Registration
	dynamic []Registration
}

// NewRegistry constructs adapters for every enabled tool in the
// configuration. Unknown tool names are skipped.
func NewRegistry(cfg *config.Config) *Registry {
	reg := &Registry{}
	reg.static = buildSet(cfg.Static.Tools)
	reg.dynamic = buildSet(cfg.Dynamic.Tools)
	return reg
}

func buildSet(tools map[string]config.ToolConfig) []Registration {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var set []Registration
	for _, name := range names {
		tc := tools[name]
		if !tc.Enabled {
			continue
		}
		builtin, ok := builtins[name]
		if !ok {
			continue
		}
		accuracy := tc.Accuracy
		if accuracy <= 0 {
			accuracy = 0.8
		}
		set = append(set, Registration{
			Adapter:  builtin.build(),
			Kind:     builtin.kind,
			Accuracy: accuracy,
			Timeout:  time.Duration(tc.Timeout) * time.Second,
			Options:  tc.Options,
		})
	}
	return set
}

// Static returns the static-phase registrations
func (r *Registry) Static() []Registration {
	return r.static
}

// Dynamic returns the dynamic-phase registrations
func (r *Registry) Dynamic() []Registration {
	return r.dynamic
}

// Register appends a custom registration to the given phase. Tests and
// embedders use this to run against in-memory adapters.
func (r *Registry) Register(reg Registration, dynamic bool) {
	if dynamic {
		r.dynamic = append(r.dynamic, reg)
	} else {
		r.static = append(r.static, reg)
	}
}
