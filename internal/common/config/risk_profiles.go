package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrEmptyProfileName is returned when a risk profile file contains an unnamed profile.
var ErrEmptyProfileName = errors.New("risk profile name cannot be empty")

// RiskProfile is one named set of AVS/CVN threshold overrides as written in the profiles file.
// A nil list keeps the built-in default for that set; an explicit empty list clears it.
type RiskProfile struct {
	CVNFail       []string `yaml:"cvn_fail"`
	CVNModerate   []string `yaml:"cvn_moderate"`
	AVSFail       []string `yaml:"avs_fail"`
	AVSModerate   []string `yaml:"avs_moderate"`
	MissingSignal string   `yaml:"missing_signal"` // "evaluate" (default) or "fail"
	RiskScoreFail int      `yaml:"risk_score_fail"`
}

type riskProfilesFile struct {
	Profiles map[string]RiskProfile `yaml:"profiles"`
}

// LoadRiskProfiles reads named risk profiles from a YAML file.
// An empty path yields no profiles. Example:
//
//	profiles:
//	  strict:
//	    avs_moderate: [A, B, W, Z, P, U, I, X]
//	    missing_signal: fail
func LoadRiskProfiles(path string) (map[string]RiskProfile, error) {
	if path == "" {
		return map[string]RiskProfile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading risk profiles: %w", err)
	}

	return ParseRiskProfiles(data)
}

// ParseRiskProfiles decodes the YAML profiles document.
func ParseRiskProfiles(data []byte) (map[string]RiskProfile, error) {
	var file riskProfilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing risk profiles: %w", err)
	}

	profiles := make(map[string]RiskProfile, len(file.Profiles))
	for name, profile := range file.Profiles {
		if name == "" {
			return nil, ErrEmptyProfileName
		}
		switch profile.MissingSignal {
		case "", "evaluate", "fail":
		default:
			return nil, fmt.Errorf("risk profile %q: unknown missing_signal %q", name, profile.MissingSignal)
		}
		profiles[name] = profile
	}

	return profiles, nil
}
