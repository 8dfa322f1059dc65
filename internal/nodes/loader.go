package nodes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/relplan/pkg/relation"
	"github.com/leapstack-labs/relplan/pkg/source"
)

// Project is everything declared under a nodes directory.
type Project struct {
	Models  []relation.NodeDescription
	Sources []source.Definition
}

// file is the layout of a YAML node file.
type file struct {
	Models  []relation.NodeDescription `yaml:"models"`
	Sources []source.Definition        `yaml:"sources"`
}

// Load reads every .yml, .yaml and .sql file under dir. SQL nodes default
// their schema to the name of the directory holding them.
func Load(dir string) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("nodes path %s is not a directory", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads a project from fsys.
func LoadFS(fsys fs.FS) (*Project, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".yml", ".yaml", ".sql":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk nodes directory: %w", err)
	}
	sort.Strings(paths)

	project := &Project{}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if filepath.Ext(path) == ".sql" {
			name := strings.TrimSuffix(filepath.Base(path), ".sql")
			schema := ""
			if dir := filepath.Dir(path); dir != "." {
				schema = filepath.Base(dir)
			}
			node, err := ParseSQL(path, name, schema, string(data))
			if err != nil {
				return nil, err
			}
			project.Models = append(project.Models, node)
			continue
		}
		if err := project.addYAML(path, data); err != nil {
			return nil, err
		}
	}
	return project, project.Validate()
}

func (p *Project) addYAML(path string, data []byte) error {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return &ParseError{File: path, Message: err.Error()}
	}
	for _, m := range f.Models {
		if m.Materialized == "" {
			m.Materialized = DefaultMaterialized
		}
		p.Models = append(p.Models, m)
	}
	p.Sources = append(p.Sources, f.Sources...)
	return nil
}

// Validate rejects unnamed and duplicate nodes and invalid sources.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Models))
	for _, m := range p.Models {
		if m.Name == "" {
			return fmt.Errorf("model without a name")
		}
		if seen[m.Key()] {
			return fmt.Errorf("duplicate model %s", m.Key())
		}
		seen[m.Key()] = true
	}
	sources := make(map[string]bool, len(p.Sources))
	for _, s := range p.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
		if sources[s.Name] {
			return fmt.Errorf("duplicate source %s", s.Name)
		}
		sources[s.Name] = true
	}
	return nil
}

// SourceTables returns the resolved tables of every source.
func (p *Project) SourceTables() []source.Table {
	var tables []source.Table
	for _, s := range p.Sources {
		tables = append(tables, s.ResolvedTables()...)
	}
	return tables
}
