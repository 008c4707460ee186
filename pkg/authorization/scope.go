package authorization

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tdeslauriers/portability/pkg/provider"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// resourceScope matches a granted data portability scope and captures the
// resource name, eg, myactivity.search.
var resourceScope = regexp.MustCompile(`^` + regexp.QuoteMeta(provider.ScopePrefix) + `(` + validate.ResourcePattern + `)$`)

// ExtractResources returns the distinct resources named by a space separated scope
// string, sorted.  Scopes outside the data portability activity family are ignored.
func ExtractResources(scope string) []string {

	seen := make(map[string]struct{})
	for _, s := range strings.Fields(scope) {
		m := resourceScope.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		seen[m[1]] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for res := range seen {
		out = append(out, res)
	}
	sort.Strings(out)
	return out
}
