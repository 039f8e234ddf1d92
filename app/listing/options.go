package listing

import (
	"fmt"
	"os"
	"slices"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Options defines the enumerated values offered by the form selects and skill checkboxes.
// The first value of Time, JobType and Location is the placeholder, still a selectable value.
type Options struct {
	Time     []string `yaml:"time" json:"time,omitempty" jsonschema:"minItems=1,uniqueItems=true,description=time values; the first one is the placeholder"`
	JobType  []string `yaml:"job_type" json:"job_type,omitempty" jsonschema:"minItems=1,uniqueItems=true,description=job type values; the first one is the placeholder"`
	Location []string `yaml:"location" json:"location,omitempty" jsonschema:"minItems=1,uniqueItems=true,description=location values; the first one is the placeholder"`
	Skills   []string `yaml:"skills" json:"skills,omitempty" jsonschema:"minItems=1,uniqueItems=true,description=skills offered as checkboxes"`
}

//go:generate go run ./internal/schema/main.go ../../options-schema.json

// DefaultOptions returns the built-in value sets
func DefaultOptions() Options {
	return Options{
		Time:     []string{"Vaqt", "Full Time", "Part Time"},
		JobType:  []string{"Ish turi", "Remote", "On-site"},
		Location: []string{"Joylashuv", "USA", "UK"},
		Skills:   []string{"Fullstack", "Python", "Midweight", "React"},
	}
}

// LoadOptions reads options from a yaml file. Lists missing in the file are taken from DefaultOptions.
func LoadOptions(fname string) (Options, error) {
	data, err := os.ReadFile(fname) //nolint:gosec // file name from cli
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options file %s: %w", fname, err)
	}
	return ParseOptions(data)
}

// ParseOptions parses yaml options, fills missing lists with defaults and validates the result
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse options: %w", err)
	}

	def := DefaultOptions()
	if opts.Time == nil {
		opts.Time = def.Time
	}
	if opts.JobType == nil {
		opts.JobType = def.JobType
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.Skills == nil {
		opts.Skills = def.Skills
	}

	if err := opts.Validate(); err != nil {
		return Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

// Validate checks every list is not empty and has no duplicates
func (o Options) Validate() error {
	lists := []struct {
		name   string
		values []string
	}{
		{"time", o.Time}, {"job_type", o.JobType}, {"location", o.Location}, {"skills", o.Skills},
	}
	for _, l := range lists {
		if len(l.values) == 0 {
			return fmt.Errorf("%s: at least one value is required", l.name)
		}
		for i, v := range l.values {
			if slices.Index(l.values, v) != i {
				return fmt.Errorf("%s: duplicate value %q", l.name, v)
			}
		}
	}
	return nil
}

// OptionsSchema returns json schema of the options file
func OptionsSchema() *jsonschema.Schema {
	schema := jsonschema.Reflect(&Options{})
	schema.Title = "Jobcards Options Schema"
	schema.Description = "Schema for jobcards options file with selectable values"
	return schema
}
