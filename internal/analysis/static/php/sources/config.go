package sources

import "github.com/xkilldash9x/phortress/internal/config"

// FromConfig converts the configured additions into Definitions. Entries
// with Reverses set become reversers.
func FromConfig(cfg config.AnalysisConfig) Definitions {
	defs := Definitions{
		InputVariables: append([]string(nil), cfg.Sources.InputVariables...),
		InputFunctions: append([]string(nil), cfg.Sources.InputFunctions...),
	}
	for _, s := range cfg.Sources.Sanitizers {
		if s.Reverses != "" {
			defs.Reversers = append(defs.Reversers, ReverserDefinition{Name: s.Name, Undoes: s.Reverses})
		}
		if len(s.Protects) == 0 {
			continue
		}
		def := SanitizerDefinition{Name: s.Name}
		for _, c := range s.Protects {
			def.Protects = append(def.Protects, VulnerabilityClass(c))
		}
		defs.Sanitizers = append(defs.Sanitizers, def)
	}
	for _, s := range cfg.Sinks {
		defs.Sinks = append(defs.Sinks, SinkDefinition{
			Name:  s.Name,
			Class: VulnerabilityClass(s.Type),
			Args:  append([]int(nil), s.Args...),
		})
	}
	return defs
}

// NewFromConfig returns the default registry extended with cfg.
func NewFromConfig(cfg config.AnalysisConfig) *Registry {
	return Default().Extend(FromConfig(cfg))
}
