// Package regions resolves country and continent names to geometries loaded
// from a GeoJSON FeatureCollection.
package regions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

// UnionSep joins several names into one area.
const UnionSep = "+"

type Region struct {
	Name      string
	Continent *string
	Area      geo.MultiPolygon
}

// ResolutionError reports a name matching zero or several regions.
type ResolutionError struct {
	Name    string
	Matches int
}

func (e *ResolutionError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("no region or continent named %q", e.Name)
	}
	return fmt.Sprintf("%d regions named %q", e.Matches, e.Name)
}

func (e *ResolutionError) Unwrap() error { return model.ErrResolution }

type Resolver interface {
	Resolve(name string) (geo.MultiPolygon, error)
}

// Lister is implemented by resolvers that can enumerate what they resolve.
type Lister interface {
	Names() []string
	Continents() []string
}

type Catalog struct {
	regions []Region
	cache   *lru.Cache[string, geo.MultiPolygon]
}

const defaultCacheSize = 256

func New(regions []Region) (*Catalog, error) {
	c, err := lru.New[string, geo.MultiPolygon](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("region cache: %w", err)
	}
	return &Catalog{regions: regions, cache: c}, nil
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open regions: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a FeatureCollection whose features carry a "name" (or
// "NAME_EN") property and an optional "continent" property.
func Load(r io.Reader) (*Catalog, error) {
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("regions: want FeatureCollection, got %q", fc.Type)
	}
	out := make([]Region, 0, len(fc.Features))
	for i, ft := range fc.Features {
		name := stringProp(ft.Properties, "name", "NAME_EN", "NAME")
		if name == "" {
			return nil, fmt.Errorf("feature %d has no name", i)
		}
		area, err := geo.ParseGeoJSON(ft.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, name, err)
		}
		reg := Region{Name: name, Area: area}
		if c := stringProp(ft.Properties, "continent", "CONTINENT"); c != "" {
			reg.Continent = &c
		}
		out = append(out, reg)
	}
	return New(out)
}

func stringProp(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.regions))
	for i, r := range c.regions {
		out[i] = r.Name
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Continents lists the distinct continents present in the catalogue.
func (c *Catalog) Continents() []string {
	var out []string
	for _, r := range c.regions {
		if r.Continent != nil && !slices.Contains(out, *r.Continent) {
			out = append(out, *r.Continent)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the union of every "+"-separated part of name. A part must
// match exactly one region; a part matching no region but a continent
// resolves to all regions of that continent.
func (c *Catalog) Resolve(name string) (geo.MultiPolygon, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, &ResolutionError{Name: name}
	}
	if area, ok := c.cache.Get(key); ok {
		return area, nil
	}
	var parts []geo.MultiPolygon
	for _, p := range strings.Split(name, UnionSep) {
		area, err := c.resolveOne(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		parts = append(parts, area)
	}
	area := geo.Union(parts...)
	c.cache.Add(key, area)
	return area, nil
}

func (c *Catalog) resolveOne(name string) (geo.MultiPolygon, error) {
	var hits []Region
	for _, r := range c.regions {
		if strings.EqualFold(r.Name, name) {
			hits = append(hits, r)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0].Area, nil
	case 0:
		if area := c.continent(name); !area.IsEmpty() {
			return area, nil
		}
	}
	return nil, &ResolutionError{Name: name, Matches: len(hits)}
}

func (c *Catalog) continent(name string) geo.MultiPolygon {
	var parts []geo.MultiPolygon
	for _, r := range c.regions {
		if r.Continent != nil && strings.EqualFold(*r.Continent, name) {
			parts = append(parts, r.Area)
		}
	}
	return geo.Union(parts...)
}
