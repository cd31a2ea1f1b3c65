// Package config defines the experiment configuration surface: the function
// under test and the capability declarations registered into the process
// registry at startup. Configurations load from YAML and are validated
// before anything touches the registry.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-crucible/internal/registry"
)

// validate is the package-level validator instance for config structs.
var validate = validator.New(validator.WithRequiredStructEnabled())

// CapabilityDecl declares one capability to register: the primary class
// reference and an optional configuration class reference, both resolvable
// against the process registry's bound containers.
type CapabilityDecl struct {
	Class     string `yaml:"class" json:"class" validate:"required,min=3"`
	ConfigCls string `yaml:"config_cls,omitempty" json:"config_cls,omitempty"`
}

// ExperimentConfig is the top-level experiment configuration.
type ExperimentConfig struct {
	// Description optionally documents the experiment for reports.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// CustomFunction is the resolvable reference of the function under test,
	// of the form "container.path.Symbol".
	CustomFunction string `yaml:"custom_function" json:"custom_function" validate:"required,min=3"`

	// CustomReaders, CustomEvaluators, and CustomWrappers declare the
	// capabilities to register under short names in the three independent
	// registry namespaces.
	CustomReaders    map[string]CapabilityDecl `yaml:"custom_readers,omitempty" json:"custom_readers,omitempty" validate:"omitempty,dive"`
	CustomEvaluators map[string]CapabilityDecl `yaml:"custom_evaluators,omitempty" json:"custom_evaluators,omitempty" validate:"omitempty,dive"`
	CustomWrappers   map[string]CapabilityDecl `yaml:"custom_wrappers,omitempty" json:"custom_wrappers,omitempty" validate:"omitempty,dive"`
}

// Validate checks if the configuration meets structural requirements.
func (c *ExperimentConfig) Validate() error { return validate.Struct(c) }

// Parse decodes and validates a configuration from a YAML stream.
// Unknown fields are rejected to surface typos early.
func Parse(r io.Reader) (*ExperimentConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg ExperimentConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode experiment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate experiment config: %w", err)
	}
	return &cfg, nil
}

// Load reads, decodes, and validates a configuration file.
func Load(path string) (*ExperimentConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open experiment config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// ApplyDeclarations registers every declared capability into the registry.
// Each declaration resolves atomically; the first failure is returned with
// the capability name attached and does not corrupt prior registrations.
func (c *ExperimentConfig) ApplyDeclarations(reg *registry.Registry) error {
	for name, decl := range c.CustomReaders {
		if err := reg.RegisterReader(name, decl.Class, decl.ConfigCls); err != nil {
			return fmt.Errorf("register reader %q: %w", name, err)
		}
	}
	for name, decl := range c.CustomEvaluators {
		if err := reg.RegisterEvaluator(name, decl.Class, decl.ConfigCls); err != nil {
			return fmt.Errorf("register evaluator %q: %w", name, err)
		}
	}
	for name, decl := range c.CustomWrappers {
		if err := reg.RegisterWrapper(name, decl.Class, decl.ConfigCls); err != nil {
			return fmt.Errorf("register wrapper %q: %w", name, err)
		}
	}
	return nil
}
