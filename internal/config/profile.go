package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profile.yaml
var defaultProfileYAML []byte

// Profile holds the manual-specific heuristics: brand, product name, source
// label, the closed chapter set and heading exclusion terms.
type Profile struct {
	Name     string   `yaml:"name"`
	Product  string   `yaml:"product"`
	Source   string   `yaml:"source"`
	Brand    string   `yaml:"brand"`
	Chapters []string `yaml:"chapters"`
	// QueryChapters is the subset of Chapters a question may select by
	// naming it. Empty means all of Chapters.
	QueryChapters     []string `yaml:"query_chapters"`
	HeadingExclusions []string `yaml:"heading_exclusions"`
}

// DefaultProfile returns the built-in Tesla Model 3 profile.
func DefaultProfile() Profile {
	p, err := parseProfile(defaultProfileYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return p
}

// LoadProfile reads a YAML profile from path. An empty path returns the
// default profile.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := parseProfile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func parseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks that the profile can drive chapter detection.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if len(p.Chapters) == 0 {
		return fmt.Errorf("at least one chapter is required")
	}
	seen := make(map[string]bool, len(p.Chapters))
	for _, c := range p.Chapters {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			return fmt.Errorf("empty chapter name")
		}
		if seen[key] {
			return fmt.Errorf("duplicate chapter %q", c)
		}
		seen[key] = true
	}
	for _, c := range p.QueryChapters {
		if !seen[strings.ToLower(strings.TrimSpace(c))] {
			return fmt.Errorf("query chapter %q is not a chapter", c)
		}
	}
	return nil
}

// DetectableChapters returns the chapters a question can select by name.
func (p Profile) DetectableChapters() []string {
	if len(p.QueryChapters) > 0 {
		return p.QueryChapters
	}
	return p.Chapters
}

// SortedChapters returns the chapter names in alphabetical order.
func (p Profile) SortedChapters() []string {
	out := append([]string(nil), p.Chapters...)
	sort.Strings(out)
	return out
}
