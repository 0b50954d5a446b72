package resolve

import (
	_ "embed"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed known_companies.yaml
var defaultKnownYAML []byte

// KnownCompany is one seed entry: a display name plus the variants that
// should resolve to it.
type KnownCompany struct {
	Name    string   `yaml:"name"`
	Domain  string   `yaml:"domain,omitempty"`
	Ticker  string   `yaml:"ticker,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

type knownFile struct {
	Companies []KnownCompany `yaml:"companies"`
}

// KnownTable maps match keys to known companies. Read-only after load.
type KnownTable struct {
	entries []KnownCompany
	byKey   map[string]int
}

// ParseKnown reads a YAML known-company table.
func ParseKnown(r io.Reader) (*KnownTable, error) {
	var f knownFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "resolve: decode known companies")
	}

	t := &KnownTable{byKey: make(map[string]int)}
	for _, c := range f.Companies {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		idx := len(t.entries)
		t.entries = append(t.entries, c)
		for _, v := range append([]string{c.Name}, c.Aliases...) {
			k := Key(v)
			if k == "" {
				continue
			}
			if _, taken := t.byKey[k]; !taken {
				t.byKey[k] = idx
			}
			// The unsuffixed key covers "Pfizer" when the entry says
			// "Pfizer Inc"; the plain key covers "Gilead Sciences".
			if mk := MatchKey(v); mk != "" {
				if _, taken := t.byKey[mk]; !taken {
					t.byKey[mk] = idx
				}
			}
		}
	}
	return t, nil
}

// DefaultKnown returns the embedded seed table.
func DefaultKnown() *KnownTable {
	t, err := ParseKnown(strings.NewReader(string(defaultKnownYAML)))
	if err != nil {
		// The embedded file is part of the build.
		panic(err)
	}
	return t
}

// LoadKnown reads the table from path, or returns DefaultKnown when path is
// empty.
func LoadKnown(path string) (*KnownTable, error) {
	if path == "" {
		return DefaultKnown(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: open known companies %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseKnown(f)
}

// Lookup returns the known company for a match key.
func (t *KnownTable) Lookup(key string) (KnownCompany, bool) {
	if t == nil {
		return KnownCompany{}, false
	}
	idx, ok := t.byKey[key]
	if !ok {
		return KnownCompany{}, false
	}
	return t.entries[idx], true
}

// ByName returns the entry whose display name is name.
func (t *KnownTable) ByName(name string) (KnownCompany, bool) {
	if t == nil {
		return KnownCompany{}, false
	}
	for _, e := range t.entries {
		if e.Name == name {
			return e, true
		}
	}
	return KnownCompany{}, false
}

// Len returns the number of entries.
func (t *KnownTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Mentions returns every display name and alias, longest first, for
// substring search in free text.
func (t *KnownTable) Mentions() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, e := range t.entries {
		out = append(out, e.Name)
		out = append(out, e.Aliases...)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// keys returns each entry's primary key mapped to its display name.
func (t *KnownTable) keys() map[string]string {
	if t == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(t.entries))
	for _, e := range t.entries {
		out[Key(e.Name)] = e.Name
	}
	return out
}
