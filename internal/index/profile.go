package index

import (
	"math"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/terrashift/climate-cli/internal/model"
)

// Profile is a named weighting of category scores. Weights must sum to 1.
type Profile struct {
	Name    string                     `json:"name" yaml:"name"`
	Weights map[model.Category]float64 `json:"weights" yaml:"weights"`
}

// weightTolerance is the accepted drift of a profile's weight sum from 1.
const weightTolerance = 1e-9

// Validate enforces the weight-normalization invariant and rejects unknown
// categories.
func (p Profile) Validate() error {
	if p.Name == "" {
		return eris.New("index: profile name is empty")
	}
	var sum float64
	for cat, w := range p.Weights {
		known := false
		for _, c := range model.Categories {
			if cat == c {
				known = true
				break
			}
		}
		if !known {
			return eris.Errorf("index: profile %q references unknown category %q", p.Name, cat)
		}
		if w < 0 {
			return eris.Errorf("index: profile %q has negative weight for %q", p.Name, cat)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return eris.Errorf("index: profile %q weights sum to %v, want 1.0", p.Name, sum)
	}
	return nil
}

// DefaultProfiles returns the four research weighting profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name: "balanced",
			Weights: map[model.Category]float64{
				model.CategoryCrime:     0.2,
				model.CategoryEconomic:  0.2,
				model.CategoryEducation: 0.2,
				model.CategoryHousing:   0.2,
				model.CategoryJobs:      0.2,
			},
		},
		{
			Name: "economy_focused",
			Weights: map[model.Category]float64{
				model.CategoryCrime:     0.1,
				model.CategoryEconomic:  0.4,
				model.CategoryEducation: 0.2,
				model.CategoryHousing:   0.2,
				model.CategoryJobs:      0.1,
			},
		},
		{
			Name: "safety_focused",
			Weights: map[model.Category]float64{
				model.CategoryCrime:     0.4,
				model.CategoryEconomic:  0.2,
				model.CategoryEducation: 0.1,
				model.CategoryHousing:   0.2,
				model.CategoryJobs:      0.1,
			},
		},
		{
			Name: "opportunity_focused",
			Weights: map[model.Category]float64{
				model.CategoryCrime:     0.1,
				model.CategoryEconomic:  0.2,
				model.CategoryEducation: 0.3,
				model.CategoryHousing:   0.1,
				model.CategoryJobs:      0.3,
			},
		},
	}
}

// LoadProfiles reads weighting profiles from a YAML file, validating each.
// The file holds a list of {name, weights} entries.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "index: read profiles %s", path)
	}
	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, eris.Wrapf(err, "index: parse profiles %s", path)
	}
	if len(profiles) == 0 {
		return nil, eris.Errorf("index: profiles file %s is empty", path)
	}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// SelectProfiles filters the given profiles down to the named subset,
// preserving order. An empty name list selects all profiles.
func SelectProfiles(profiles []Profile, names []string) ([]Profile, error) {
	if len(names) == 0 {
		return profiles, nil
	}
	byName := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, eris.Errorf("index: unknown profile %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
