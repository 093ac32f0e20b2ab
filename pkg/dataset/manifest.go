package dataset

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// Manifest describes a dataset spread over several files.
//
//	name: people
//	base: data
//	default:
//	  - people.nt
//	named:
//	  - graph: http://example.org/g1
//	    file: g1.nt
type Manifest struct {
	Name    string       `yaml:"name"`
	Base    string       `yaml:"base,omitempty"`
	Default []string     `yaml:"default"`
	Named   []NamedGraph `yaml:"named,omitempty"`

	dir string
}

// NamedGraph maps one file to a named graph.
type NamedGraph struct {
	Graph string `yaml:"graph"`
	File  string `yaml:"file"`
}

// LoadManifest reads and validates a manifest. Relative file paths are
// resolved against Base, which is itself relative to the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parsing YAML"), errors.ErrInvalidConfiguration)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every entry names a file and every named graph an IRI.
func (m *Manifest) Validate() error {
	if len(m.Default) == 0 && len(m.Named) == 0 {
		return errors.InvalidConfigurationf("manifest lists no files")
	}
	for i, f := range m.Default {
		if f == "" {
			return errors.InvalidConfigurationf("default[%d]: empty file", i)
		}
	}
	for i, ng := range m.Named {
		if ng.Graph == "" {
			return errors.InvalidConfigurationf("named[%d]: missing graph", i)
		}
		if ng.File == "" {
			return errors.InvalidConfigurationf("named[%d]: missing file", i)
		}
	}
	return nil
}

func (m *Manifest) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(m.dir, m.Base, file)
}

// Sources lists the manifest's files in load order: default graph files
// first, then named graphs.
func (m *Manifest) Sources() []Source {
	out := make([]Source, 0, len(m.Default)+len(m.Named))
	for _, f := range m.Default {
		out = append(out, Source{Path: m.resolve(f), Graph: rdf.DefaultGraph})
	}
	for _, ng := range m.Named {
		out = append(out, Source{Path: m.resolve(ng.File), Graph: rdf.NewIRI(ng.Graph)})
	}
	return out
}
