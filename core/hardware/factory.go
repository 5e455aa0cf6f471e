package hardware

import "github.com/kilianp07/batsim/core/factory"

var adapterRegistry = factory.NewRegistry[Adapter]()

// RegisterAdapter adds an adapter factory identified by name.
func RegisterAdapter(name string, f factory.Factory[Adapter]) error {
	return adapterRegistry.Register(name, f)
}

// AdapterTypes lists the registered adapter names.
func AdapterTypes() []string { return adapterRegistry.Names() }

// NewAdapter builds the adapter described by cfg. An empty type selects the
// simulated adapter.
func NewAdapter(cfg factory.ModuleConfig) (Adapter, error) {
	if cfg.Type == "" {
		cfg.Type = "simulated"
	}
	return adapterRegistry.Create(cfg)
}

func init() {
	_ = RegisterAdapter("simulated", func(conf map[string]any) (Adapter, error) {
		c := struct {
			LoadMA float64 `json:"load_ma"`
		}{LoadMA: DefaultSimulatedLoadMA}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSimulated(c.LoadMA), nil
	})
}
