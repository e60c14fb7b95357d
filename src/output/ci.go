package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/trustedanalytics/platform-parent/src/pipeline"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", time.Now().Unix(), id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), id)
}

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// JUnitReport converts a run into one suite per builder kind, one case per
// project.
func JUnitReport(s *pipeline.Summary) JUnitTestSuites {
	root := JUnitTestSuites{
		Name: "platform-parent",
		Time: fmt.Sprintf("%.3f", s.Duration.Seconds()),
	}
	index := map[string]int{}
	for _, r := range s.Results {
		kind := r.Project.Builder
		i, ok := index[kind]
		if !ok {
			i = len(root.Suites)
			index[kind] = i
			root.Suites = append(root.Suites, JUnitTestSuite{Name: "build/" + kind})
		}
		suite := &root.Suites[i]

		tc := JUnitTestCase{
			Name:      r.Project.Name,
			Classname: "platform.build." + kind,
			Time:      fmt.Sprintf("%.3f", r.Duration.Seconds()),
		}
		switch r.Status {
		case pipeline.StatusFailed:
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s failed", r.Project.Name),
				Type:    "build",
				Body:    r.Err.Error(),
			}
			suite.Failures++
			root.Failures++
		case pipeline.StatusSkipped:
			tc.Skipped = &JUnitSkipped{Message: "run canceled"}
			suite.Skipped++
			root.Skipped++
		}
		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
		root.Tests++
	}
	for i := range root.Suites {
		var total time.Duration
		for _, r := range s.Results {
			if "build/"+r.Project.Builder == root.Suites[i].Name {
				total += r.Duration
			}
		}
		root.Suites[i].Time = fmt.Sprintf("%.3f", total.Seconds())
	}
	return root
}

// WriteJUnit writes the run as JUnit XML to path.
func WriteJUnit(path string, s *pipeline.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(JUnitReport(s)); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = io.WriteString(f, "\n")
	return err
}
