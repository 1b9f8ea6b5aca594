package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
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
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// SectionStartCollapsed starts a section that is collapsed by default.
func SectionStartCollapsed(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", ts, id, name)
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

// JUnit XML types for GitLab test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
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
	Message string `xml:"message,attr,omitempty"`
}

// StageReport is one pipeline stage result for JUnit reporting.
type StageReport struct {
	Name    string
	Status  string // "success", "failed", "skipped"
	Detail  string
	Elapsed time.Duration
}

// WriteDeployJUnit writes per-environment deploy stage results as JUnit XML
// for GitLab test reporting. Each environment becomes a test suite, each
// pipeline stage a test case.
func WriteDeployJUnit(dir string, stages map[string][]StageReport, elapsed time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	totalTests := 0
	totalFailures := 0
	var suites []JUnitTestSuite

	for env, ss := range stages {
		suite := JUnitTestSuite{Name: "slipway/deploy/" + env}

		var suiteElapsed time.Duration
		for _, st := range ss {
			tc := JUnitTestCase{
				Name:      st.Name,
				Classname: "slipway.deploy." + env,
				Time:      fmt.Sprintf("%.3f", st.Elapsed.Seconds()),
			}
			switch st.Status {
			case "failed":
				tc.Failure = &JUnitFailure{
					Message: st.Detail,
					Type:    st.Name,
				}
				suite.Failures++
				totalFailures++
			case "skipped":
				tc.Skipped = &JUnitSkipped{Message: st.Detail}
			}
			suite.Cases = append(suite.Cases, tc)
			suite.Tests++
			totalTests++
			suiteElapsed += st.Elapsed
		}
		suite.Time = fmt.Sprintf("%.3f", suiteElapsed.Seconds())

		suites = append(suites, suite)
	}

	root := JUnitTestSuites{
		Name:     "slipway-deploy",
		Tests:    totalTests,
		Failures: totalFailures,
		Time:     fmt.Sprintf("%.3f", elapsed.Seconds()),
		Suites:   suites,
	}

	path := filepath.Join(dir, "deploy.xml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	f.WriteString(xml.Header)
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	f.WriteString("\n")

	return nil
}
