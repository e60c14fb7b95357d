package build

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step a project failed in.
type Stage string

const (
	StageSetup   Stage = "setup"
	StageAcquire Stage = "acquire"
	StageBuild   Stage = "build"
	StagePackage Stage = "package"
)

var (
	ErrUnknownBuilder   = errors.New("unknown builder kind")
	ErrNoArchive        = errors.New("no archive matched")
	ErrAmbiguousArchive = errors.New("more than one archive matched")
)

// StageError attributes a failure to a project and stage.
type StageError struct {
	Project string
	Stage   Stage
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Project, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise a StageError.
func Wrap(project string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Project: project, Stage: stage, Err: err}
}
