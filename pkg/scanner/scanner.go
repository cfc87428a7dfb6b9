// Package scanner implements the Workspace Scanner / Tech Detector: given
// an absolute directory path, it returns a ranked list of detected tech
// stacks with confidence scores and evidence. The functional-options
// constructor (New(opts ...Option)) follows the same workspace
// detector/generator
// pairing shape as dublyo-dockerizer's internal/generator (which consumes
// a sibling internal/detector.DetectionResult); the weighted scoring rule
// set is specific to this detector.
package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/debughostd/pkg/apierr"
	"github.com/cuemby/debughostd/pkg/types"
	toml "github.com/pelletier/go-toml/v2"
)

// Pattern is one tech's declarative match rules.
type Pattern struct {
	Tech          string
	Files         []string // exact top-level file names
	Dirs          []string // exact top-level directory names
	Extensions    []string // file extensions present among top-level files
	DependencyKey string   // tech is boosted if this key appears in package.json deps
}

// Option configures the Scanner.
type Option func(*Scanner)

// Scanner evaluates a workspace directory against a set of Patterns.
type Scanner struct {
	patterns []Pattern
}

// New builds a Scanner with the default patterns plus any supplied via
// WithPattern.
func New(opts ...Option) *Scanner {
	s := &Scanner{patterns: DefaultPatterns()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithPattern registers an additional detection pattern.
func WithPattern(p Pattern) Option {
	return func(s *Scanner) { s.patterns = append(s.patterns, p) }
}

// DefaultPatterns returns the built-in recognized techs.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Tech: "nodejs", Files: []string{"package.json"}, Dirs: []string{"node_modules"}, Extensions: []string{".js", ".mjs", ".cjs"}},
		{Tech: "react", DependencyKey: "react"},
		{Tech: "vue", DependencyKey: "vue"},
		{Tech: "angular", Files: []string{"angular.json"}, DependencyKey: "@angular/core"},
		{Tech: "python", Files: []string{"requirements.txt", "pyproject.toml", "setup.py", "Pipfile"}, Dirs: []string{"venv", ".venv", "__pycache__"}, Extensions: []string{".py"}},
		{Tech: "php", Files: []string{"composer.json", "index.php"}, Extensions: []string{".php"}},
		{Tech: "static", Files: []string{"index.html"}, Extensions: []string{".html", ".css"}},
		{Tech: "docker", Files: []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"}},
	}
}

// packageJSON is the narrow view of package.json this scanner decodes.
type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// pyproject is the narrow [project]/[tool.poetry] view this scanner
// decodes from pyproject.toml to recover name/version for Python projects.
type pyproject struct {
	Project struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// Metadata is workspace-level info recovered alongside tech detections.
type Metadata struct {
	Name        string
	Version     string
	Description string
}

// Result is the outcome of Scan.
type Result struct {
	Technologies      []types.TechDetection
	Metadata          Metadata
	PrimaryTech       string
	PortRecommendation types.TechRange
}

// Scan enumerates path's top-level entries (no recursion) and returns the
// ranked detections plus workspace metadata.
func (s *Scanner) Scan(path string, ranges map[string]types.TechRange) (Result, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Result{}, apierr.New(apierr.KindValidation, apierr.CodeInvalidWorkspace, "workspace path must be an existing, readable directory")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{}, apierr.New(apierr.KindValidation, apierr.CodeInvalidWorkspace, "workspace path is not readable")
	}

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	exts := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			dirs[e.Name()] = true
			continue
		}
		files[e.Name()] = true
		if ext := filepath.Ext(e.Name()); ext != "" {
			exts[ext] = true
		}
	}

	var pkg *packageJSON
	if files["package.json"] {
		if data, err := os.ReadFile(filepath.Join(path, "package.json")); err == nil {
			var p packageJSON
			if json.Unmarshal(data, &p) == nil {
				pkg = &p
			}
		}
	}

	var py *pyproject
	if files["pyproject.toml"] {
		if data, err := os.ReadFile(filepath.Join(path, "pyproject.toml")); err == nil {
			var p pyproject
			if toml.Unmarshal(data, &p) == nil {
				py = &p
			}
		}
	}

	scores := make(map[string]float64)
	evidence := make(map[string][]string)
	add := func(tech string, weight float64, why string) {
		scores[tech] += weight
		evidence[tech] = append(evidence[tech], why)
	}

	for _, p := range s.patterns {
		for _, f := range p.Files {
			if files[f] {
				add(p.Tech, 1.0, "file:"+f)
			}
		}
		for _, d := range p.Dirs {
			if dirs[d] {
				add(p.Tech, 0.5, "dir:"+d)
			}
		}
		for _, ext := range p.Extensions {
			if exts[ext] {
				add(p.Tech, 0.3, "pattern:*"+ext)
			}
		}
		if p.DependencyKey != "" && pkg != nil {
			if _, ok := pkg.Dependencies[p.DependencyKey]; ok {
				add(p.Tech, 1.0, "dependency:"+p.DependencyKey)
			} else if _, ok := pkg.DevDependencies[p.DependencyKey]; ok {
				add(p.Tech, 1.0, "dependency:"+p.DependencyKey)
			}
		}
	}

	detections := make([]types.TechDetection, 0, len(scores))
	for tech, score := range scores {
		if score > 100 {
			score = 100
		}
		detections = append(detections, types.TechDetection{
			Tech:       tech,
			Confidence: score,
			Evidence:   evidence[tech],
		})
	}
	// On equal confidence a detection backed by a package.json dependency
	// (a framework such as react) ranks ahead of one without, so a React
	// app is not reported as plain nodejs; remaining ties go by name.
	fromDependency := func(d types.TechDetection) bool {
		for _, e := range d.Evidence {
			if strings.HasPrefix(e, "dependency:") {
				return true
			}
		}
		return false
	}
	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Confidence != detections[j].Confidence {
			return detections[i].Confidence > detections[j].Confidence
		}
		if di, dj := fromDependency(detections[i]), fromDependency(detections[j]); di != dj {
			return di
		}
		return detections[i].Tech < detections[j].Tech
	})

	meta := Metadata{}
	if pkg != nil {
		meta = Metadata{Name: pkg.Name, Version: pkg.Version, Description: pkg.Description}
	} else if py != nil {
		name := py.Project.Name
		version := py.Project.Version
		if name == "" {
			name = py.Tool.Poetry.Name
		}
		if version == "" {
			version = py.Tool.Poetry.Version
		}
		meta = Metadata{Name: name, Version: version}
	}

	primary := "unknown"
	if len(detections) > 0 {
		primary = detections[0].Tech
	}

	rng, ok := ranges[primary]
	if !ok {
		rng = types.TechRange{Tech: "unknown", Min: 3000, Max: 9999, Default: 3000}
	}

	return Result{
		Technologies:       detections,
		Metadata:           meta,
		PrimaryTech:        primary,
		PortRecommendation: rng,
	}, nil
}

// NormalizeName is used by callers deriving a container/project name from
// workspace metadata (e.g. a package.json "name" field) when no explicit
// name was supplied at registration: it trims incidental whitespace and
// falls back to "project" if the detected value is empty.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "project"
	}
	return s
}
