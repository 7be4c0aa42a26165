// Package insight turns researched page content into the classification,
// address, note, and approval summary that the enrichment stage persists.
package insight

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-pipeline/internal/model"
)

// DefaultLabel is used when no classification rule matches.
const DefaultLabel = "Marketing Agency"

// Rule maps keyword signals in research content to a classification label.
// Rules are evaluated in slice order; the first rule with any keyword hit
// wins.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the built-in rule set in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Label: "Direct-to-Consumer Retail",
			Keywords: []string{
				"direct to consumer", "direct-to-consumer", "d2c", "dtc",
				"sells direct", "our online store", "shop now",
			},
		},
		{
			Label: "Direct Mail Specialist",
			Keywords: []string{
				"direct mail", "mailing house", "print and mail",
				"postal campaign", "letterbox drop",
			},
		},
		{
			Label: "Multi-Channel Paid Media Buyer",
			Keywords: []string{
				"paid media", "media buying", "media buyer", "ppc",
				"paid social", "programmatic", "ad spend",
			},
		},
		{
			Label: "Ecommerce Platform Specialist",
			Keywords: []string{
				"shopify", "magento", "woocommerce", "bigcommerce",
				"ecommerce platform",
			},
		},
	}
}

// LoadRules reads a rule override file. The YAML has a top-level
// "classification" key:
//
//	classification:
//	  rules:
//	    - label: Direct Mail Specialist
//	      keywords: [direct mail, mailing house]
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "insight: read rules %s", path)
	}

	var wrapper struct {
		Classification struct {
			Rules []Rule `yaml:"rules"`
		} `yaml:"classification"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "insight: parse rules")
	}

	rules := wrapper.Classification.Rules
	if len(rules) == 0 {
		return nil, eris.Errorf("insight: rules file %s defines no rules", path)
	}
	for i, r := range rules {
		if r.Label == "" {
			return nil, eris.Errorf("insight: rule %d has no label", i)
		}
		if len(r.Keywords) == 0 {
			return nil, eris.Errorf("insight: rule %q has no keywords", r.Label)
		}
	}
	return rules, nil
}

// Classify evaluates rules in order against the gathered pages and returns
// the first matching label, or DefaultLabel when nothing matches.
func Classify(rules []Rule, pages []model.ResearchPage) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(strings.ToLower(p.Content))
		sb.WriteByte('\n')
	}
	corpus := sb.String()

	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(corpus, strings.ToLower(kw)) {
				return r.Label
			}
		}
	}
	return DefaultLabel
}
