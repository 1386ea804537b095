package schedule

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/pipeline"
)

var validate = validator.New()

// Job is one report definition of the jobs file. Its name is the report's
// key in the HTTP API and on the sink topic.
//
//	jobs:
//	  - name: gulf-east
//	    station: "42003"
//	    start_year: 2000
//	    end_year: 2020
//	    strategy: percentile
//	    direction: 120
type Job struct {
	Name       string   `yaml:"name" validate:"required,max=64,excludesall=/?#%"`
	Station    string   `yaml:"station"`
	StartYear  int      `yaml:"start_year"`
	EndYear    int      `yaml:"end_year"`
	Strategy   string   `yaml:"strategy"`
	Direction  *float64 `yaml:"direction"`
	Tolerance  *float64 `yaml:"tolerance"`
	Percentile *float64 `yaml:"percentile"`
}

type jobsFile struct {
	Jobs []Job `yaml:"jobs" validate:"required,min=1,unique=Name,dive"`
}

// Request converts the job into a validated pipeline request, filling in
// the default tolerance and percentile.
func (j Job) Request() (pipeline.Request, error) {
	kind, err := aggregate.ParseKind(j.Strategy)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("job %q: %w", j.Name, err)
	}

	params := aggregate.Params{Tolerance: aggregate.DefaultTolerance, Percentile: aggregate.DefaultPercentile}
	if kind == aggregate.KindPercentile {
		if j.Direction == nil {
			return pipeline.Request{}, fmt.Errorf("job %q: direction is required for the percentile strategy", j.Name)
		}
		params.Direction = *j.Direction
	}
	if j.Tolerance != nil {
		params.Tolerance = *j.Tolerance
	}
	if j.Percentile != nil {
		params.Percentile = *j.Percentile
	}

	req := pipeline.Request{
		Job:       j.Name,
		Station:   j.Station,
		StartYear: j.StartYear,
		EndYear:   j.EndYear,
		Strategy:  kind,
		Params:    params,
	}
	if err := req.Validate(); err != nil {
		return pipeline.Request{}, fmt.Errorf("job %q: %w", j.Name, err)
	}
	if _, err := aggregate.New(kind, params); err != nil {
		return pipeline.Request{}, fmt.Errorf("job %q: %w", j.Name, err)
	}
	return req, nil
}

// LoadJobs reads and validates the YAML jobs file at path.
func LoadJobs(path string) ([]pipeline.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file %s: %w", path, err)
	}
	return ParseJobs(data)
}

// ParseJobs decodes and validates a YAML jobs document.
func ParseJobs(data []byte) ([]pipeline.Request, error) {
	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse jobs file: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return nil, fmt.Errorf("invalid jobs file: %w", err)
	}

	reqs := make([]pipeline.Request, 0, len(file.Jobs))
	var errs []error
	for _, j := range file.Jobs {
		req, err := j.Request()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reqs = append(reqs, req)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reqs, nil
}
