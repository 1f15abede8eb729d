package region

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/rfielding/kripke-regions/ratfunc"
)

// ErrSyntax is returned for malformed region text.
var ErrSyntax = errors.New("malformed region")

var boundRE = regexp.MustCompile(`^\s*([^<\s]+)\s*<=\s*([A-Za-z_][A-Za-z0-9_]*)\s*<=\s*([^<\s]+)\s*$`)

func parseRat(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a number", ErrSyntax, s)
	}
	return r, nil
}

// ParseRegion reads one region such as "0.3<=p<=0.6,0.1<=q<=0.2". Empty text
// is the region without parameters.
func ParseRegion(s string) (*Region, error) {
	lower, upper := ratfunc.Point{}, ratfunc.Point{}
	if strings.TrimSpace(s) != "" {
		for _, part := range strings.Split(s, ",") {
			m := boundRE.FindStringSubmatch(part)
			if m == nil {
				return nil, fmt.Errorf("%w: %q", ErrSyntax, part)
			}
			v := ratfunc.Var(m[2])
			if _, dup := lower[v]; dup {
				return nil, fmt.Errorf("%w: %s bounded twice", ErrSyntax, v)
			}
			lo, err := parseRat(m[1])
			if err != nil {
				return nil, err
			}
			hi, err := parseRat(m[3])
			if err != nil {
				return nil, err
			}
			lower[v], upper[v] = lo, hi
		}
	}
	return New(lower, upper)
}

// Parse reads regions separated by semicolons.
func Parse(s string) ([]*Region, error) {
	var out []*Region
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := ParseRegion(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Document is the YAML form of a region list. Each region maps a parameter
// to its [lower, upper] pair:
//
//	regions:
//	  - {p: [0.3, 0.6], q: [0.1, 0.2]}
//	  - {p: [0, 1/2], q: [0, 1]}
type Document struct {
	Regions []map[string][]any `yaml:"regions"`
}

func (d *Document) regions() ([]*Region, error) {
	out := make([]*Region, 0, len(d.Regions))
	for i, m := range d.Regions {
		lower, upper := ratfunc.Point{}, ratfunc.Point{}
		for name, pair := range m {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: region %d: %s needs [lower, upper]", ErrSyntax, i, name)
			}
			lo, err := parseRat(fmt.Sprint(pair[0]))
			if err != nil {
				return nil, fmt.Errorf("region %d: %w", i, err)
			}
			hi, err := parseRat(fmt.Sprint(pair[1]))
			if err != nil {
				return nil, fmt.Errorf("region %d: %w", i, err)
			}
			lower[ratfunc.Var(name)], upper[ratfunc.Var(name)] = lo, hi
		}
		r, err := New(lower, upper)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Load reads a YAML region list.
func Load(r io.Reader) ([]*Region, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return doc.regions()
}

// LoadFile reads a YAML region list from path.
func LoadFile(path string) ([]*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	regions, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return regions, nil
}
