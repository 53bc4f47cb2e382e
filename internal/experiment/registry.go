package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynsens/internal/integrators"
	"github.com/san-kum/dynsens/internal/models"
)

type Registry struct {
	models      map[string]func() models.Model
	integrators map[string]func() integrators.Stepper
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() models.Model),
		integrators: make(map[string]func() integrators.Stepper),
	}

	r.models["decay"] = func() models.Model { return models.NewDecay() }
	r.models["ramp"] = func() models.Model { return models.NewRamp() }
	r.models["oscillator"] = func() models.Model { return models.NewOscillator() }
	r.models["vanderpol"] = func() models.Model { return models.NewVanDerPol() }
	r.models["duffing"] = func() models.Model { return models.NewDuffing() }
	r.models["lorenz"] = func() models.Model { return models.NewLorenz() }
	r.models["buck"] = func() models.Model { return models.NewBuck() }

	r.integrators["rk45"] = func() integrators.Stepper { return integrators.NewRK45() }
	r.integrators["rk4"] = func() integrators.Stepper { return integrators.NewRK4() }
	r.integrators["euler"] = func() integrators.Stepper { return integrators.NewEuler() }

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn func() models.Model) {
	r.models[name] = fn
}

func (r *Registry) GetModel(name string) (models.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string) (integrators.Stepper, error) {
	if name == "" {
		name = "rk45"
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
