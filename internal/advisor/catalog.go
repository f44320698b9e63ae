package advisor

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/collegeai/internal/document"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// gpaWindow is how far below a college's minimum GPA a student may be and
// still see it in search results.
const gpaWindow = 0.5

// College is one catalog entry.
type College struct {
	Name       string   `yaml:"name" json:"name"`
	Location   string   `yaml:"location" json:"location"`
	MinGPA     float64  `yaml:"min_gpa" json:"min_gpa"`
	MajorFocus []string `yaml:"major_focus" json:"major_focus"`
	Cost       string   `yaml:"cost" json:"cost"`
	URL        string   `yaml:"url" json:"url"`
}

type catalogFile struct {
	Colleges []College `yaml:"colleges"`
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) ([]College, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing college catalog: %w", err)
	}
	for i, c := range f.Colleges {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("parsing college catalog: entry %d has no name", i)
		}
	}
	return f.Colleges, nil
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() []College {
	colleges, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return colleges
}

// Search returns the catalog colleges within reach of the student's GPA.
// When the profile has no usable GPA the whole catalog is returned.
func Search(catalog []College, profile document.Document) []College {
	gpa, ok := StudentGPA(profile)
	out := []College{}
	for _, c := range catalog {
		if !ok || gpa >= c.MinGPA-gpaWindow {
			out = append(out, c)
		}
	}
	return out
}

// StudentGPA reads the unweighted GPA, falling back to the weighted one and
// the legacy academics.gpa field. String answers such as "3.7" are accepted.
func StudentGPA(profile document.Document) (float64, bool) {
	for _, path := range []string{"gpa_unweighted", "gpa_weighted", "academics.gpa"} {
		switch v := document.Get(profile, path).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
