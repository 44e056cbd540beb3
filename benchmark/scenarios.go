package benchmark

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-tables/images"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines one benchmark run over a set of documents.
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// References are local paths or URLs, cycled through for each iteration.
	References []string `json:"references" yaml:"references"`
	Iterations int      `json:"iterations" yaml:"iterations"`
	WarmupRuns int      `json:"warmup_runs" yaml:"warmup_runs"`
}

// Validate checks that the scenario can run.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is required")
	}
	if len(s.References) == 0 {
		return errors.Errorf("scenario %s has no references", s.Name)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive", s.Name)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %s: warmup runs must not be negative", s.Name)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 20,
			WarmupRuns: 2,
		},
	}
}

// WithReferences sets the documents to run over.
func (sb *ScenarioBuilder) WithReferences(refs ...string) *ScenarioBuilder {
	sb.scenario.References = append(sb.scenario.References, refs...)
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads scenarios from a YAML file with a top-level
// "scenarios" list.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenarios")
	}
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing scenarios")
	}
	for _, s := range f.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Scenarios, nil
}

// CollectImages lists the JPEG and PNG files directly inside dir, sorted by
// name. Other files are skipped.
func CollectImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read directory")
	}

	var refs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := images.ValidateFile(path); err != nil {
			continue
		}
		refs = append(refs, path)
	}
	if len(refs) == 0 {
		return nil, errors.Errorf("no valid images found in directory: %s", dir)
	}
	sort.Strings(refs)
	return refs, nil
}
