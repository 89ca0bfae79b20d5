package runner

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rote-dev/rote-go/pkg/core"
	"github.com/rote-dev/rote-go/pkg/errors"
)

// TaskFile is the YAML document accepted by "rote-cli run --tasks".
type TaskFile struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// TaskSpec describes one task in a batch file.
type TaskSpec struct {
	Type            string     `yaml:"type"`
	URL             string     `yaml:"url,omitempty"`
	Description     string     `yaml:"description"`
	SuccessCriteria string     `yaml:"success_criteria,omitempty"`
	EstimatedClicks int        `yaml:"estimated_clicks,omitempty"`
	Steps           []StepSpec `yaml:"steps,omitempty"`
}

// StepSpec is one pre-interpreted action inside a TaskSpec. Tasks without
// steps skip the direct strategy and lean on learned patterns or vision.
type StepSpec struct {
	Kind        string        `yaml:"kind"`
	Selector    string        `yaml:"selector,omitempty"`
	LocatorKind string        `yaml:"locator_kind,omitempty"`
	Description string        `yaml:"description,omitempty"`
	Value       string        `yaml:"value,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// LoadTaskFile parses a batch task file into runnable tasks.
func LoadTaskFile(path string) ([]core.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read task file")
	}

	var file TaskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse task file")
	}
	if len(file.Tasks) == 0 {
		return nil, errors.New(errors.InvalidInput, "task file contains no tasks")
	}

	tasks := make([]core.Task, 0, len(file.Tasks))
	for i, spec := range file.Tasks {
		task, err := spec.Task()
		if err != nil {
			return nil, errors.WithFields(err, errors.Fields{"task_index": i})
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Task converts one batch file entry into a runnable task.
func (s TaskSpec) Task() (core.Task, error) {
	if s.Type == "" {
		return core.Task{}, errors.New(errors.InvalidInput, "task needs a type")
	}
	if s.Description == "" {
		return core.Task{}, errors.New(errors.InvalidInput, "task needs a description")
	}

	steps := make([]core.ActionStep, 0, len(s.Steps))
	for i, spec := range s.Steps {
		step, err := spec.step()
		if err != nil {
			return core.Task{}, errors.WithFields(err, errors.Fields{"step_index": i})
		}
		steps = append(steps, step)
	}

	return core.Task{
		Type:            s.Type,
		Description:     s.Description,
		SuccessCriteria: s.SuccessCriteria,
		Steps:           steps,
		EstimatedClicks: s.EstimatedClicks,
		Page:            core.PageContext{URL: s.URL},
	}, nil
}

func (s StepSpec) step() (core.ActionStep, error) {
	kind := core.ActionKind(s.Kind)
	if !kind.Valid() {
		return core.ActionStep{}, errors.Newf(errors.InvalidInput, "unknown action kind %q", s.Kind)
	}

	locKind := core.LocatorStructural
	switch s.LocatorKind {
	case "", "structural":
	case "text":
		locKind = core.LocatorText
	case "coordinate":
		locKind = core.LocatorCoordinate
	default:
		return core.ActionStep{}, errors.Newf(errors.InvalidInput, "unknown locator kind %q", s.LocatorKind)
	}

	// navigate and wait can run on value alone, everything else needs a target
	if s.Selector == "" && kind != core.ActionNavigate && kind != core.ActionWait && kind != core.ActionVerify {
		return core.ActionStep{}, errors.Newf(errors.InvalidInput, "%s step needs a selector", kind)
	}

	step := core.ActionStep{
		Kind:    kind,
		Value:   s.Value,
		Timeout: s.Timeout,
	}
	if s.Selector != "" {
		step.Target = core.TargetDescriptor{
			Description: s.Description,
			Primary:     core.Locator{Value: s.Selector, Kind: locKind},
		}
	}
	return step, nil
}
