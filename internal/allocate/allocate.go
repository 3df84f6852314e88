package allocate

import (
	"github.com/danieljhkim/gridmix/internal/feeder"
	"github.com/danieljhkim/gridmix/internal/mix"
)

// Result bundles every allocation decision for one (feeder, mix) job.
type Result struct {
	Heating   Heating
	Resources Resources
	EV        EV
}

// Resolve runs all allocators. Each uses its own seeded stream, so adding
// or changing one resource class never perturbs the others.
func Resolve(m *feeder.Model, mx mix.Mix) *Result {
	return &Result{
		Heating:   AssignHeating(m, mx),
		Resources: AllocateResources(m, mx),
		EV:        AllocateEV(m, mx),
	}
}
