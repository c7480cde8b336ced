// Package dataset parses tabular climate datasets and fits per-country
// trend curves for the heat and air coefficient tables.
package dataset

import (
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrMissingColumn is returned when a dataset lacks the columns its profile
// requires. No records are produced.
var ErrMissingColumn = eris.New("dataset: missing required columns")

// Role is the semantic meaning of a column.
type Role string

// Column roles.
const (
	RoleCountry      Role = "country"
	RoleYear         Role = "year"
	RoleDate         Role = "date"
	RoleValue        Role = "value"
	RoleCO2          Role = "co2"
	RoleNitrousOxide Role = "nitrous_oxide"
)

// Kind selects how a dataset is grouped and fitted.
type Kind string

// Dataset kinds.
const (
	KindPollutant   Kind = "pollutant"
	KindTemperature Kind = "temperature"
)

// Built-in profile names.
const (
	ProfileAir  = "air"
	ProfileHeat = "heat"
)

// Profile describes which header names play which role for one dataset
// family.
type Profile struct {
	Name    string
	Kind    Kind
	Aliases map[Role][]string
}

// Required returns the roles that must all be present.
func (p *Profile) Required() []Role {
	switch p.Kind {
	case KindPollutant:
		return []Role{RoleCountry, RoleYear}
	case KindTemperature:
		return []Role{RoleCountry, RoleDate, RoleValue}
	default:
		return nil
	}
}

// AnyOf returns roles of which at least one must be present.
func (p *Profile) AnyOf() []Role {
	if p.Kind == KindPollutant {
		return []Role{RoleCO2, RoleNitrousOxide}
	}
	return nil
}

// Columns maps each resolved role to its index in the header.
type Columns map[Role]int

// Has reports whether role was found in the header.
func (c Columns) Has(role Role) bool {
	_, ok := c[role]
	return ok
}

// Resolve matches header names against the profile aliases. Matching is
// case-insensitive and ignores surrounding whitespace and a UTF-8 BOM. The
// first matching column wins.
func (p *Profile) Resolve(header []string) (Columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(Columns)
	for role, aliases := range p.Aliases {
		for _, alias := range aliases {
			if i, ok := index[normalizeHeader(alias)]; ok {
				cols[role] = i
				break
			}
		}
	}

	var missing []string
	for _, role := range p.Required() {
		if !cols.Has(role) {
			missing = append(missing, string(role))
		}
	}
	if anyOf := p.AnyOf(); len(anyOf) > 0 && !slices.ContainsFunc(anyOf, cols.Has) {
		names := make([]string, len(anyOf))
		for i, r := range anyOf {
			names[i] = string(r)
		}
		missing = append(missing, "one of "+strings.Join(names, "|"))
	}
	if len(missing) > 0 {
		return nil, eris.Wrapf(ErrMissingColumn, "profile %s: %s", p.Name, strings.Join(missing, ", "))
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// AirProfile is the OWID-style pollutant dataset layout.
func AirProfile() *Profile {
	return &Profile{
		Name: ProfileAir,
		Kind: KindPollutant,
		Aliases: map[Role][]string{
			RoleCountry:      {"country"},
			RoleYear:         {"year"},
			RoleCO2:          {"co2"},
			RoleNitrousOxide: {"nitrous_oxide"},
		},
	}
}

// HeatProfile is the Berkeley Earth style temperature dataset layout.
func HeatProfile() *Profile {
	return &Profile{
		Name: ProfileHeat,
		Kind: KindTemperature,
		Aliases: map[Role][]string{
			RoleCountry: {"country"},
			RoleDate:    {"date", "dt"},
			RoleValue:   {"value", "averagetemperature"},
		},
	}
}

// Registry holds the profiles available by name.
type Registry struct {
	profiles map[string]*Profile
}

// DefaultRegistry returns a registry with the built-in air and heat profiles.
func DefaultRegistry() *Registry {
	return &Registry{profiles: map[string]*Profile{
		ProfileAir:  AirProfile(),
		ProfileHeat: HeatProfile(),
	}}
}

// Get returns the named profile.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[strings.ToLower(name)]
	if !ok {
		return nil, eris.Errorf("dataset: unknown profile %q (have %s)", name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type profilesFile struct {
	Profiles map[string]profileEntry `yaml:"profiles"`
}

type profileEntry struct {
	Kind    Kind                `yaml:"kind"`
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadRegistry builds the default registry and extends it with the YAML
// alias file at path. Entries for existing profiles append aliases; new
// names must declare a kind. An empty path returns the defaults.
//
//	profiles:
//	  heat:
//	    aliases:
//	      value: [avg_temp]
//	  air_monthly:
//	    kind: pollutant
//	    aliases:
//	      country: [iso_code]
func LoadRegistry(path string) (*Registry, error) {
	reg := DefaultRegistry()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read profiles %s", path)
	}
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "dataset: parse profiles")
	}

	for name, entry := range file.Profiles {
		name = strings.ToLower(name)
		p, ok := reg.profiles[name]
		if !ok {
			base, err := baseProfile(entry.Kind)
			if err != nil {
				return nil, eris.Wrapf(err, "dataset: profile %s", name)
			}
			base.Name = name
			p = base
			reg.profiles[name] = p
		} else if entry.Kind != "" && entry.Kind != p.Kind {
			return nil, eris.Errorf("dataset: profile %s: cannot change kind %s to %s", name, p.Kind, entry.Kind)
		}

		for role, aliases := range entry.Aliases {
			r := Role(strings.ToLower(role))
			if !validRole(p.Kind, r) {
				return nil, eris.Errorf("dataset: profile %s: role %q not used by %s datasets", name, role, p.Kind)
			}
			p.Aliases[r] = append(p.Aliases[r], aliases...)
		}
	}
	return reg, nil
}

func baseProfile(kind Kind) (*Profile, error) {
	switch kind {
	case KindPollutant:
		return AirProfile(), nil
	case KindTemperature:
		return HeatProfile(), nil
	case "":
		return nil, eris.New("kind is required for new profiles")
	default:
		return nil, eris.Errorf("unknown kind %q", kind)
	}
}

func validRole(kind Kind, r Role) bool {
	switch kind {
	case KindPollutant:
		return r == RoleCountry || r == RoleYear || r == RoleCO2 || r == RoleNitrousOxide
	case KindTemperature:
		return r == RoleCountry || r == RoleDate || r == RoleValue
	}
	return false
}
