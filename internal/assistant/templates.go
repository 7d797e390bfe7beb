package assistant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadReplyPools reads custom reply templates from a YAML file mapping
// intent names to template lists:
//
//	greeting:
//	  - "Hello, sir. Standing by."
//	time:
//	  - "The time, sir, is %s."
//
// Unknown intent names are rejected, as are time and date templates
// without exactly one %s placeholder.
func LoadReplyPools(path string) (map[Intent][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse reply templates: %w", err)
	}

	pools := make(map[Intent][]string, len(raw))
	for name, pool := range raw {
		intent := Intent(name)
		if _, ok := replyPools[intent]; !ok {
			return nil, fmt.Errorf("unknown intent %q in reply templates", name)
		}
		if len(pool) == 0 {
			return nil, fmt.Errorf("intent %q has an empty template pool", name)
		}
		if intent == IntentTime || intent == IntentDate {
			for _, tmpl := range pool {
				if strings.Count(tmpl, "%s") != 1 {
					return nil, fmt.Errorf("intent %q template %q needs exactly one %%s", name, tmpl)
				}
			}
		}
		pools[intent] = pool
	}
	return pools, nil
}
