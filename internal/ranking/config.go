package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
)

// Profile names used by the listing pages.
const (
	ProfileOverall = "overall" // site-wide top list
	ProfileTiers   = "tiers"   // tier-grouped view
	ProfileBrand   = "brand"   // products within one brand
	ProfileFlavor  = "flavor"  // products within one flavor
)

// Profiles holds every ranking profile plus the shared scale and fallback.
type Profiles struct {
	BaselineFallback float64           `json:"baseline_fallback"`
	Scale            Scale             `json:"scale"`
	Profiles         map[string]Params `json:"profiles"`
	Tiers            []Tier            `json:"tiers"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version  string    `json:"version"`
	Profiles Overrides `json:"ranking"`
}

// Overrides is a partial ranking configuration. Nil fields keep the base
// value, so an explicit zero (top_n: 0 for unbounded, min_reviews: 0) still
// overrides a default.
type Overrides struct {
	BaselineFallback *float64                  `json:"baseline_fallback"`
	Scale            *Scale                    `json:"scale"`
	Profiles         map[string]ParamsOverride `json:"profiles"`
	Tiers            []Tier                    `json:"tiers"`
}

// ParamsOverride is a partial Params.
type ParamsOverride struct {
	Confidence *float64 `json:"confidence"`
	MinReviews *int     `json:"min_reviews"`
	TopN       *int     `json:"top_n"`
}

func (o ParamsOverride) apply(p Params) Params {
	if o.Confidence != nil {
		p.Confidence = *o.Confidence
	}
	if o.MinReviews != nil {
		p.MinReviews = *o.MinReviews
	}
	if o.TopN != nil {
		p.TopN = *o.TopN
	}
	return p
}

// DefaultProfiles returns the built-in ranking configuration.
//
// overall: C=10, M=5, top 50. A strong prior keeps a handful of glowing
// reviews from topping the site-wide list.
// tiers, brand: C=3, M=3, unbounded. Smaller candidate sets need less shrinkage.
// flavor: same as overall.
func DefaultProfiles() *Profiles {
	return &Profiles{
		BaselineFallback: DefaultBaselineFallback,
		Scale:            DefaultScale,
		Profiles: map[string]Params{
			ProfileOverall: {Confidence: 10, MinReviews: 5, TopN: 50},
			ProfileTiers:   {Confidence: 3, MinReviews: 3, TopN: 0},
			ProfileBrand:   {Confidence: 3, MinReviews: 3, TopN: 0},
			ProfileFlavor:  {Confidence: 10, MinReviews: 5, TopN: 50},
		},
		Tiers: DefaultTiers(),
	}
}

// Profile returns the named parameters and whether the profile exists.
func (p *Profiles) Profile(name string) (Params, bool) {
	params, ok := p.Profiles[name]
	return params, ok
}

// LoadCalibration loads ranking profiles from a JSON calibration file.
// An empty path returns the defaults. If the file can't be read or parsed the
// defaults are returned together with the error, so callers can log it and
// keep serving. Partial files are merged over the defaults.
func LoadCalibration(filePath string) (*Profiles, error) {
	if filePath == "" {
		return DefaultProfiles(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultProfiles(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse ranking calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultProfiles(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultProfiles()
	merged := MergeCalibration(defaults, &config.Profiles)

	for name, params := range merged.Profiles {
		if err := params.Validate(); err != nil {
			return DefaultProfiles(), fmt.Errorf("profile %q: %w", name, err)
		}
	}
	if merged.Scale.Min >= merged.Scale.Max {
		return DefaultProfiles(), fmt.Errorf("%w: scale min %v must be below max %v",
			ErrInvalidInput, merged.Scale.Min, merged.Scale.Max)
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// MergeCalibration merges override over base. Only fields present in the
// override change; profiles that only exist in the override start from zero
// Params. A non-empty tier list replaces the base tiers entirely.
func MergeCalibration(base *Profiles, override *Overrides) *Profiles {
	if base == nil {
		base = DefaultProfiles()
	}

	result := &Profiles{
		BaselineFallback: base.BaselineFallback,
		Scale:            base.Scale,
		Profiles:         make(map[string]Params, len(base.Profiles)),
		Tiers:            append([]Tier(nil), base.Tiers...),
	}
	for name, params := range base.Profiles {
		result.Profiles[name] = params
	}

	if override == nil {
		return result
	}

	if override.BaselineFallback != nil {
		result.BaselineFallback = *override.BaselineFallback
	}
	if override.Scale != nil {
		result.Scale = *override.Scale
	}
	if len(override.Tiers) > 0 {
		result.Tiers = append([]Tier(nil), override.Tiers...)
	}
	for name, o := range override.Profiles {
		result.Profiles[name] = o.apply(result.Profiles[name])
	}

	return result
}

// logCalibrationOverrides logs which values differ from the defaults.
func logCalibrationOverrides(defaults *Profiles, loaded *Profiles) {
	var overrides []string

	if loaded.BaselineFallback != defaults.BaselineFallback {
		overrides = append(overrides, fmt.Sprintf("baseline_fallback: %.2f -> %.2f",
			defaults.BaselineFallback, loaded.BaselineFallback))
	}
	if loaded.Scale != defaults.Scale {
		overrides = append(overrides, fmt.Sprintf("scale: [%v,%v] -> [%v,%v]",
			defaults.Scale.Min, defaults.Scale.Max, loaded.Scale.Min, loaded.Scale.Max))
	}

	names := make([]string, 0, len(loaded.Profiles))
	for name := range loaded.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got := loaded.Profiles[name]
		want, ok := defaults.Profiles[name]
		if !ok {
			overrides = append(overrides, fmt.Sprintf("%s: added (C=%.1f M=%d N=%d)",
				name, got.Confidence, got.MinReviews, got.TopN))
			continue
		}
		if got != want {
			overrides = append(overrides, fmt.Sprintf("%s: C=%.1f M=%d N=%d -> C=%.1f M=%d N=%d",
				name, want.Confidence, want.MinReviews, want.TopN, got.Confidence, got.MinReviews, got.TopN))
		}
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
