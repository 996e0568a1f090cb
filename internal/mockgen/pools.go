package mockgen

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed pools.yaml
var poolsYAML []byte

type pools struct {
	Technical       map[string]map[string][]string `yaml:"technical"`
	Behavioral      []string                       `yaml:"behavioral"`
	SystemDesign    map[string][]string            `yaml:"system_design"`
	Coding          map[string][]string            `yaml:"coding"`
	Comments        map[string][]string            `yaml:"comments"`
	Suggestions     []string                       `yaml:"suggestions"`
	Strengths       []string                       `yaml:"strengths"`
	Weaknesses      []string                       `yaml:"weaknesses"`
	SummaryComments map[string]string              `yaml:"summary_comments"`
	Recommendations recommendations                `yaml:"recommendations"`
	Chat            chatTemplates                  `yaml:"chat"`
}

type recommendations struct {
	Poor      []string `yaml:"poor"`
	Good      []string `yaml:"good"`
	Excellent []string `yaml:"excellent"`
	Closing   string   `yaml:"closing"`
}

type chatTemplates struct {
	Simple   string `yaml:"simple"`
	Fallback string `yaml:"fallback"`
}

var difficulties = []string{"easy", "medium", "hard"}

var bands = []string{bandExcellent, bandGood, bandAverage, bandPoor}

func loadPools(data []byte) (*pools, error) {
	var p pools
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding pools: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// validate checks that every pool the generator can reach is non-empty.
func (p *pools) validate() error {
	for _, pos := range []string{"frontend", technicalFallback} {
		for _, d := range difficulties {
			if len(p.Technical[pos][d]) == 0 {
				return fmt.Errorf("empty technical pool %s/%s", pos, d)
			}
		}
	}
	for _, d := range difficulties {
		if len(p.SystemDesign[d]) == 0 {
			return fmt.Errorf("empty system_design pool %s", d)
		}
		if len(p.Coding[d]) == 0 {
			return fmt.Errorf("empty coding pool %s", d)
		}
	}
	for _, b := range bands {
		if len(p.Comments[b]) == 0 {
			return fmt.Errorf("empty comment pool %s", b)
		}
		if p.SummaryComments[b] == "" {
			return fmt.Errorf("empty summary comment %s", b)
		}
	}
	switch {
	case len(p.Behavioral) == 0:
		return fmt.Errorf("empty behavioral pool")
	case len(p.Suggestions) < maxSuggestions:
		return fmt.Errorf("need at least %d suggestions, have %d", maxSuggestions, len(p.Suggestions))
	case len(p.Strengths) < maxStrengths:
		return fmt.Errorf("need at least %d strengths, have %d", maxStrengths, len(p.Strengths))
	case len(p.Weaknesses) < maxWeaknesses:
		return fmt.Errorf("need at least %d weaknesses, have %d", maxWeaknesses, len(p.Weaknesses))
	case len(p.Recommendations.Poor) == 0 || len(p.Recommendations.Good) == 0 || len(p.Recommendations.Excellent) == 0:
		return fmt.Errorf("empty recommendation pool")
	case p.Chat.Simple == "" || p.Chat.Fallback == "":
		return fmt.Errorf("empty chat template")
	}
	return nil
}
