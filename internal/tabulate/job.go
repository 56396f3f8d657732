package tabulate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/henrybloomingdale/pubmed-tabulate/internal/daterange"
	"github.com/henrybloomingdale/pubmed-tabulate/internal/terms"
)

// DefaultFrom is the start date used when a job names none.
var DefaultFrom = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Job is a saved tabulation, read from YAML:
//
//	authors_file: authors.txt
//	keywords: [income, poverty]
//	mesh_terms: [social class]
//	from: 01-01-1990
//	to: 12-31-2015
//	interval_years: 5
//	target_folder: results
//
// Inline lists and *_file lists are merged. Relative file paths resolve
// against the job file's directory.
type Job struct {
	Journals     []string `yaml:"journals,omitempty"`
	JournalsFile string   `yaml:"journals_file,omitempty"`
	Authors      []string `yaml:"authors,omitempty"`
	AuthorsFile  string   `yaml:"authors_file,omitempty"`
	Keywords     []string `yaml:"keywords,omitempty"`
	KeywordsFile string   `yaml:"keywords_file,omitempty"`
	MeSHTerms    []string `yaml:"mesh_terms,omitempty"`
	MeSHFile     string   `yaml:"mesh_terms_file,omitempty"`

	From          string `yaml:"from,omitempty"`
	To            string `yaml:"to,omitempty"`
	IntervalYears int    `yaml:"interval_years,omitempty"`
	TargetFolder  string `yaml:"target_folder,omitempty"`

	dir string
}

// LoadJob reads a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	j.dir = filepath.Dir(path)
	return &j, nil
}

// Input resolves the job into an Input. A missing from defaults to
// DefaultFrom and a missing to defaults to today.
func (j *Job) Input(today time.Time) (Input, error) {
	var (
		in  Input
		err error
	)
	if in.Journals, err = j.merge(j.Journals, j.JournalsFile); err != nil {
		return Input{}, err
	}
	if in.Authors, err = j.merge(j.Authors, j.AuthorsFile); err != nil {
		return Input{}, err
	}
	if in.TextTerms, err = j.merge(j.Keywords, j.KeywordsFile); err != nil {
		return Input{}, err
	}
	if in.MeSHTerms, err = j.merge(j.MeSHTerms, j.MeSHFile); err != nil {
		return Input{}, err
	}
	if _, err := in.Mode(); err != nil {
		return Input{}, err
	}

	from, to := DefaultFrom, daterange.Day(today)
	if j.From != "" {
		if from, err = daterange.ParseDate(j.From); err != nil {
			return Input{}, fmt.Errorf("job from date: %w", err)
		}
	}
	if j.To != "" {
		if to, err = daterange.ParseDate(j.To); err != nil {
			return Input{}, fmt.Errorf("job to date: %w", err)
		}
	}
	if in.Ranges, err = daterange.Partition(from, to, j.IntervalYears); err != nil {
		return Input{}, err
	}
	return in, nil
}

func (j *Job) merge(inline []string, file string) ([]string, error) {
	lines := append([]string(nil), inline...)
	if file != "" {
		if !filepath.IsAbs(file) && j.dir != "" {
			file = filepath.Join(j.dir, file)
		}
		loaded, err := terms.Load(file)
		if err != nil {
			return nil, err
		}
		lines = append(lines, loaded...)
	}
	return terms.Unique(lines), nil
}
