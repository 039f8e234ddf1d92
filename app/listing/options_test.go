package listing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, []string{"Vaqt", "Full Time", "Part Time"}, opts.Time)
	assert.Equal(t, []string{"Ish turi", "Remote", "On-site"}, opts.JobType)
	assert.Equal(t, []string{"Joylashuv", "USA", "UK"}, opts.Location)
	assert.Equal(t, []string{"Fullstack", "Python", "Midweight", "React"}, opts.Skills)
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Options
		wantErr string
	}{
		{
			name: "full",
			yaml: "time: [A, B]\njob_type: [C]\nlocation: [D, E]\nskills: [Go, Rust]\n",
			want: Options{Time: []string{"A", "B"}, JobType: []string{"C"}, Location: []string{"D", "E"},
				Skills: []string{"Go", "Rust"}},
		},
		{
			name: "partial uses defaults",
			yaml: "skills:\n  - Go\n  - Python\n",
			want: Options{Time: DefaultOptions().Time, JobType: DefaultOptions().JobType,
				Location: DefaultOptions().Location, Skills: []string{"Go", "Python"}},
		},
		{name: "empty document", yaml: "", want: DefaultOptions()},
		{name: "empty list", yaml: "skills: []\n", wantErr: "skills: at least one value is required"},
		{name: "duplicate", yaml: "location: [USA, UK, USA]\n", wantErr: `location: duplicate value "USA"`},
		{name: "bad yaml", yaml: "skills: [Go\n", wantErr: "failed to parse options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseOptions([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts)
		})
	}
}

func TestLoadOptions(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "options.yml")
	require.NoError(t, os.WriteFile(fname, []byte("time: [Vaqt, Contract]\n"), 0o600))

	opts, err := LoadOptions(fname)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vaqt", "Contract"}, opts.Time)
	assert.Equal(t, DefaultOptions().Skills, opts.Skills)

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read options file")
}

func TestOptionsSchema(t *testing.T) {
	schema := OptionsSchema()
	assert.Equal(t, "Jobcards Options Schema", schema.Title)

	data, err := json.Marshal(schema)
	require.NoError(t, err)
	for _, prop := range []string{"time", "job_type", "location", "skills"} {
		assert.Contains(t, string(data), `"`+prop+`"`)
	}
}
