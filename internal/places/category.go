package places

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/place-import/internal/model"
)

//go:embed categories.yaml
var defaultRules []byte

// CategoryRule maps type-tag keywords to a category.
type CategoryRule struct {
	Name     model.Category `yaml:"name"`
	Keywords []string       `yaml:"keywords"`
}

// CategoryRules is an ordered keyword-matching policy.
type CategoryRules struct {
	Categories []CategoryRule `yaml:"categories"`
}

// DefaultCategoryRules returns the built-in rules.
func DefaultCategoryRules() *CategoryRules {
	rules, err := parseRules(defaultRules)
	if err != nil {
		panic(err)
	}
	return rules
}

// LoadCategoryRules reads rules from a YAML file. An empty path yields the
// built-in rules.
func LoadCategoryRules(path string) (*CategoryRules, error) {
	if path == "" {
		return DefaultCategoryRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "places: read category rules %s", path)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*CategoryRules, error) {
	var rules CategoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, eris.Wrap(err, "places: parse category rules")
	}
	if len(rules.Categories) == 0 {
		return nil, eris.New("places: category rules are empty")
	}
	return &rules, nil
}

// Derive picks the coarse category for a detail. The primary type is
// consulted before the remaining tags.
func (r *CategoryRules) Derive(d *model.PlaceDetail) model.Category {
	if d == nil {
		return model.CategoryOther
	}
	if c, ok := r.match(d.PrimaryType); ok {
		return c
	}
	for _, t := range d.Types {
		if c, ok := r.match(t); ok {
			return c
		}
	}
	return model.CategoryOther
}

func (r *CategoryRules) match(tag string) (model.Category, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return "", false
	}
	for _, rule := range r.Categories {
		for _, kw := range rule.Keywords {
			if hasToken(tag, strings.ToLower(kw)) {
				return rule.Name, true
			}
		}
	}
	return "", false
}

// hasToken reports whether kw appears in tag on underscore boundaries, so
// "bar" matches "wine_bar" but not "barber_shop".
func hasToken(tag, kw string) bool {
	t := "_" + tag + "_"
	return strings.Contains(t, "_"+kw+"_")
}
