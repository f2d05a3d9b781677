// Package config loads the user-facing simulation parameters.
//
// Values are layered, lowest to highest precedence: built-in defaults,
// the archive's optional config.json member (camelCase keys, unknown
// keys ignored), KARSTCONV_* environment variables, and explicitly set
// command-line flags.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Auto is the sentinel for parameters resolved from the grid geometry
// at run time.
const Auto = "auto"

// Params are the overridable simulation parameters.
type Params struct {
	Name           string  `koanf:"name" json:"name"`
	Seed           int64   `koanf:"seed" json:"seed"`
	KPts           int     `koanf:"kPts" json:"kPts"`
	CohesionFactor float64 `koanf:"cohesionFactor" json:"cohesionFactor"`
	NSinks         int     `koanf:"nSinks" json:"nSinks"`
	// SearchRadius is a number or "auto" (3x the largest cell
	// dimension in box units).
	SearchRadius                     string  `koanf:"searchRadius" json:"searchRadius"`
	InceptionSurfaceConstraintWeight float64 `koanf:"inceptionSurfaceConstraintWeight" json:"inceptionSurfaceConstraintWeight"`
	// MaxInceptionSurfaceDistance is a number or "auto", same
	// heuristic as SearchRadius.
	MaxInceptionSurfaceDistance string `koanf:"maxInceptionSurfaceDistance" json:"maxInceptionSurfaceDistance"`
	// DensitySamplingModifier scales sampling by permeability:
	// 1.0 = no effect, above 1 puts more points in permeable areas.
	DensitySamplingModifier float64 `koanf:"densitySamplingModifier" json:"densitySamplingModifier"`
	// RMinPervious and RMinImpervious override the base and sparse
	// sampling densities; "auto" derives them from the grid depth.
	RMinPervious   string `koanf:"rMinPervious" json:"rMinPervious"`
	RMinImpervious string `koanf:"rMinImpervious" json:"rMinImpervious"`
}

// paramKeys limits which flags feed parameter overrides; operational
// flags like --output or --verbose stay out of the parameter set.
var paramKeys = map[string]bool{
	"name":                             true,
	"seed":                             true,
	"kPts":                             true,
	"cohesionFactor":                   true,
	"nSinks":                           true,
	"searchRadius":                     true,
	"inceptionSurfaceConstraintWeight": true,
	"maxInceptionSurfaceDistance":      true,
	"densitySamplingModifier":          true,
	"rMinPervious":                     true,
	"rMinImpervious":                   true,
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"name":                             "Karst Network",
		"seed":                             42,
		"kPts":                             10,
		"cohesionFactor":                   0.9,
		"nSinks":                           100,
		"searchRadius":                     Auto,
		"inceptionSurfaceConstraintWeight": 1.0,
		"maxInceptionSurfaceDistance":      Auto,
		"densitySamplingModifier":          2.0,
		"rMinPervious":                     Auto,
		"rMinImpervious":                   Auto,
	}
}

// Load builds the parameter set. rawConfig is the archive's config.json
// member (nil when absent); flags may be nil.
func Load(rawConfig []byte, flags *pflag.FlagSet) (*Params, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(rawConfig) > 0 {
		if err := k.Load(rawbytes.Provider(rawConfig), json.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config.json: %w", err)
		}
	}

	if err := k.Load(env.Provider("KARSTCONV_", ".", func(s string) string {
		return camelKey(strings.TrimPrefix(s, "KARSTCONV_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := camelKey(strings.ReplaceAll(f.Name, "-", "_"))
			if !paramKeys[key] {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var p Params
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("unable to decode parameters: %w", err)
	}
	if _, _, err := AutoOrValue(p.SearchRadius); err != nil {
		return nil, fmt.Errorf("searchRadius: %w", err)
	}
	if _, _, err := AutoOrValue(p.MaxInceptionSurfaceDistance); err != nil {
		return nil, fmt.Errorf("maxInceptionSurfaceDistance: %w", err)
	}
	if _, _, err := AutoOrValue(p.RMinPervious); err != nil {
		return nil, fmt.Errorf("rMinPervious: %w", err)
	}
	if _, _, err := AutoOrValue(p.RMinImpervious); err != nil {
		return nil, fmt.Errorf("rMinImpervious: %w", err)
	}
	return &p, nil
}

// AutoOrValue parses a parameter that is either the string "auto" or a
// number.
func AutoOrValue(s string) (value float64, auto bool, err error) {
	if strings.EqualFold(strings.TrimSpace(s), Auto) {
		return 0, true, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, fmt.Errorf("value must be either %q or a number, got %q", Auto, s)
	}
	return v, false, nil
}

// camelKey turns SNAKE_CASE or snake_case into camelCase, the key form
// the vendor config uses.
func camelKey(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
