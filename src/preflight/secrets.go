// Package preflight gates rendered job specs before they reach the cluster.
// A spec that carries an embedded credential never gets submitted.
package preflight

import (
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Finding is a single detected secret in a rendered spec.
type Finding struct {
	Line        int
	RuleID      string
	Description string
}

func (f Finding) String() string {
	return fmt.Sprintf("line %d: %s (%s)", f.Line, f.Description, f.RuleID)
}

// Scanner runs gitleaks' default ruleset over rendered job specs.
type Scanner struct {
	detector *detect.Detector
}

// NewScanner builds a scanner with the default gitleaks config.
func NewScanner() (*Scanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("preflight: initializing detector: %w", err)
	}
	return &Scanner{detector: d}, nil
}

// ScanSpec checks rendered spec content and returns any credential findings.
// An empty result means the spec is clean to submit.
func (s *Scanner) ScanSpec(content string) []Finding {
	hits := s.detector.DetectString(content)
	if len(hits) == 0 {
		return nil
	}

	findings := make([]Finding, 0, len(hits))
	for _, h := range hits {
		findings = append(findings, Finding{
			Line:        h.StartLine + 1, // gitleaks is 0-indexed
			RuleID:      h.RuleID,
			Description: h.Description,
		})
	}
	return findings
}
