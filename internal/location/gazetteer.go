package location

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrInvalidGazetteer is returned when the reference dataset breaks its invariants
var ErrInvalidGazetteer = errors.New("invalid gazetteer")

//go:embed data/kenya-locations.yaml
var defaultDataset []byte

// EntryType is the administrative level of a place
type EntryType string

const (
	TypeNeighborhood EntryType = "neighborhood"
	TypeTown         EntryType = "town"
	TypeCounty       EntryType = "county"
	TypeRegion       EntryType = "region"
)

// specificity orders types from the most to the least specific
func (t EntryType) specificity() int {
	switch t {
	case TypeNeighborhood:
		return 0
	case TypeTown:
		return 1
	case TypeCounty:
		return 2
	default:
		return 3
	}
}

// Entry is one canonical place name with its aliases
type Entry struct {
	Name    string    `json:"name"`
	Type    EntryType `json:"type"`
	Aliases []string  `json:"aliases,omitempty"`
	County  string    `json:"county,omitempty"`
	Region  string    `json:"region"`
}

// Gazetteer is the immutable, validated set of known places
type Gazetteer struct {
	version   string
	entries   []Entry
	stopwords map[string]struct{}
}

type placeRecord struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type countyRecord struct {
	Name          string        `yaml:"name"`
	Aliases       []string      `yaml:"aliases"`
	Region        string        `yaml:"region"`
	Towns         []placeRecord `yaml:"towns"`
	Neighborhoods []placeRecord `yaml:"neighborhoods"`
}

type gazetteerFile struct {
	Version   string         `yaml:"version"`
	Regions   []placeRecord  `yaml:"regions"`
	Counties  []countyRecord `yaml:"counties"`
	Stopwords []string       `yaml:"stopwords"`
}

// LoadGazetteer reads the dataset at path, or the bundled Kenya dataset when path is empty
func LoadGazetteer(path string) (*Gazetteer, error) {
	if path == "" {
		return ParseGazetteer(defaultDataset)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer %s: %w", path, err)
	}
	return ParseGazetteer(data)
}

// ParseGazetteer decodes and validates a YAML dataset
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var f gazetteerFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidGazetteer, err)
	}

	g := &Gazetteer{
		version:   f.Version,
		stopwords: make(map[string]struct{}, len(f.Stopwords)),
	}

	regions := make(map[string]bool, len(f.Regions))
	for _, r := range f.Regions {
		g.entries = append(g.entries, Entry{Name: r.Name, Type: TypeRegion, Aliases: r.Aliases, Region: r.Name})
		regions[r.Name] = true
	}
	for _, c := range f.Counties {
		if c.Region != "" && !regions[c.Region] {
			return nil, fmt.Errorf("%w: county %q references undeclared region %q", ErrInvalidGazetteer, c.Name, c.Region)
		}
		g.entries = append(g.entries, Entry{Name: c.Name, Type: TypeCounty, Aliases: c.Aliases, County: c.Name, Region: c.Region})
		for _, t := range c.Towns {
			g.entries = append(g.entries, Entry{Name: t.Name, Type: TypeTown, Aliases: t.Aliases, County: c.Name, Region: c.Region})
		}
		for _, n := range c.Neighborhoods {
			g.entries = append(g.entries, Entry{Name: n.Name, Type: TypeNeighborhood, Aliases: n.Aliases, County: c.Name, Region: c.Region})
		}
	}
	for _, w := range f.Stopwords {
		if n := normalize(w); n != "" {
			g.stopwords[n] = struct{}{}
		}
	}

	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validate enforces unique names per type and unambiguous terms
func (g *Gazetteer) validate() error {
	if len(g.entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidGazetteer)
	}

	names := make(map[EntryType]map[string]bool)
	owners := make(map[string]string)
	for _, e := range g.entries {
		key := normalize(e.Name)
		if key == "" {
			return fmt.Errorf("%w: %s with empty name", ErrInvalidGazetteer, e.Type)
		}
		if names[e.Type] == nil {
			names[e.Type] = make(map[string]bool)
		}
		if names[e.Type][key] {
			return fmt.Errorf("%w: duplicate %s %q", ErrInvalidGazetteer, e.Type, e.Name)
		}
		names[e.Type][key] = true

		for _, term := range append([]string{e.Name}, e.Aliases...) {
			n := normalize(term)
			if n == "" {
				return fmt.Errorf("%w: empty alias on %q", ErrInvalidGazetteer, e.Name)
			}
			if owner, ok := owners[n]; ok && owner != e.Name {
				return fmt.Errorf("%w: term %q maps to both %q and %q", ErrInvalidGazetteer, term, owner, e.Name)
			}
			owners[n] = e.Name
		}
	}
	return nil
}

// Version returns the dataset version string
func (g *Gazetteer) Version() string {
	return g.version
}

// Entries returns a copy of all entries in dataset order
func (g *Gazetteer) Entries() []Entry {
	out := make([]Entry, len(g.entries))
	for i, e := range g.entries {
		e.Aliases = slices.Clone(e.Aliases)
		out[i] = e
	}
	return out
}
