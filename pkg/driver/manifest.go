// Package driver loads suite manifests: YAML files listing serialized
// programs to run, gated on a manifest format version.
package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// SupportedFormats is the semver range of manifest formats this build reads.
const SupportedFormats = "^1"

// Manifest is a validated scenario suite.
type Manifest struct {
	Path      string
	Format    string
	Name      string
	Scenarios []Scenario
}

// Scenario is one serialized program in the suite. Path is resolved relative
// to the manifest's directory.
type Scenario struct {
	Path string
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

type manifestYAML struct {
	Format    string `yaml:"format"`
	Name      string `yaml:"name"`
	Scenarios []struct {
		Path string `yaml:"path"`
	} `yaml:"scenarios"`
}

// LoadManifest parses and validates a suite manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	var raw manifestYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("manifest: parsing %s: %w", path, err)
	}

	var issues []string
	if raw.Name == "" {
		issues = append(issues, "missing name")
	}
	if raw.Format == "" {
		issues = append(issues, "missing format version")
	} else if issue := checkFormat(raw.Format); issue != "" {
		issues = append(issues, issue)
	}
	if len(raw.Scenarios) == 0 {
		issues = append(issues, "no scenarios listed")
	}

	base := filepath.Dir(path)
	m := &Manifest{Path: path, Format: raw.Format, Name: raw.Name}
	for i, s := range raw.Scenarios {
		if s.Path == "" {
			issues = append(issues, fmt.Sprintf("scenario %d has no path", i))
			continue
		}
		scenarioPath := s.Path
		if !filepath.IsAbs(scenarioPath) {
			scenarioPath = filepath.Join(base, scenarioPath)
		}
		m.Scenarios = append(m.Scenarios, Scenario{Path: scenarioPath})
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return m, nil
}

func checkFormat(format string) string {
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Sprintf("format %q is not a semantic version", format)
	}
	constraint, err := semver.NewConstraint(SupportedFormats)
	if err != nil {
		return fmt.Sprintf("internal: bad supported-format range %q", SupportedFormats)
	}
	if !constraint.Check(v) {
		return fmt.Sprintf("format %q is outside the supported range %q", format, SupportedFormats)
	}
	return ""
}
