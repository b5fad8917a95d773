package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRuleset indicates the ruleset file failed schema validation.
var ErrInvalidRuleset = errors.New("invalid ruleset")

// rulesetSchema validates ruleset files before any matcher is built, so a
// typo fails fast with a field-level message instead of a misconfigured
// audit.
const rulesetSchema = `{
  "type": "object",
  "required": ["patterns"],
  "additionalProperties": false,
  "properties": {
    "patterns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["kind", "type"],
        "additionalProperties": false,
        "properties": {
          "kind": {"type": "string", "minLength": 1},
          "type": {"enum": ["eid-range", "keyword-proximity"]},
          "min": {"type": "integer", "minimum": 0},
          "max": {"type": "integer", "minimum": 0},
          "keywords": {"type": "array", "items": {"type": "string"}},
          "window": {"type": "integer", "minimum": 0},
          "min_run": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

// PatternConfig is one entry in a ruleset file.
type PatternConfig struct {
	Kind     string   `yaml:"kind"`
	Type     string   `yaml:"type"`
	Min      int      `yaml:"min"`
	Max      int      `yaml:"max"`
	Keywords []string `yaml:"keywords"`
	Window   int      `yaml:"window"`
	MinRun   int      `yaml:"min_run"`
}

// RulesetConfig is the on-disk ruleset shape.
type RulesetConfig struct {
	Patterns []PatternConfig `yaml:"patterns"`
}

// DefaultRuleset returns the built-in ruleset: the EID range matcher plus a
// keyword-proximity net for identifiers in incriminating context.
func DefaultRuleset() *Ruleset {
	ruleset := NewRuleset()

	// Registration cannot fail for distinct kinds.
	_ = ruleset.Register(NewEIDMatcher("eid", 0, 0))
	_ = ruleset.Register(NewKeywordMatcher("keyword", []string{"eid", "participant_id"}, 0, 0))

	return ruleset
}

// LoadRuleset reads and validates a YAML ruleset file and builds matchers
// from it.
func LoadRuleset(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}

	return ParseRuleset(raw)
}

// ParseRuleset validates raw YAML against the ruleset schema and builds the
// configured matchers.
func ParseRuleset(raw []byte) (*Ruleset, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}

	validation, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesetSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validate ruleset: %w", err)
	}

	if !validation.Valid() {
		msgs := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			msgs = append(msgs, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidRuleset, strings.Join(msgs, "; "))
	}

	var cfg RulesetConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse ruleset: %w", err)
	}

	ruleset := NewRuleset()

	for _, pattern := range cfg.Patterns {
		matcher, buildErr := buildMatcher(pattern)
		if buildErr != nil {
			return nil, buildErr
		}

		if regErr := ruleset.Register(matcher); regErr != nil {
			return nil, regErr
		}
	}

	return ruleset, nil
}

func buildMatcher(cfg PatternConfig) (Matcher, error) {
	switch cfg.Type {
	case "eid-range":
		return NewEIDMatcher(cfg.Kind, cfg.Min, cfg.Max), nil
	case "keyword-proximity":
		return NewKeywordMatcher(cfg.Kind, cfg.Keywords, cfg.Window, cfg.MinRun), nil
	default:
		return nil, fmt.Errorf("%w: unknown matcher type %q", ErrInvalidRuleset, cfg.Type)
	}
}
