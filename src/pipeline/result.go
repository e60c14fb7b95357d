package pipeline

import (
	"time"

	"github.com/trustedanalytics/platform-parent/src/config"
	"github.com/trustedanalytics/platform-parent/src/refs"
)

// Status is the final state of one project.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one project.
type Result struct {
	Project  config.Project
	Status   Status
	Worker   int
	Ref      string
	Archives []string
	Err      error
	Duration time.Duration
}

// Summary describes a whole run.
type Summary struct {
	RunID      string
	Output     string
	Results    []Result
	Refs       []refs.Entry
	RefsFile   string
	Descriptor string   // rendered deployment descriptor, if any
	Published  []string // object keys uploaded, if publishing is on
	Warnings   []string
	Duration   time.Duration
}

// Count returns how many results have status s.
func (s *Summary) Count(st Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == st {
			n++
		}
	}
	return n
}

// OK reports whether every project succeeded.
func (s *Summary) OK() bool {
	return s.Count(StatusSuccess) == len(s.Results)
}
