package namespace

import (
	"fmt"
	"regexp"
	"strings"
)

// Language identifies one of the SDK languages a namespace review covers.
type Language string

const (
	DotNet     Language = ".NET"
	Java       Language = "Java"
	Go         Language = "Go"
	JavaScript Language = "JavaScript"
	Python     Language = "Python"
)

// Languages is the fixed set of languages every review must cover, in
// reporting order.
var Languages = []Language{DotNet, Java, Go, JavaScript, Python}

// Namespace is one language's namespace as found in an issue body.
type Namespace struct {
	Language Language `json:"language"`
	Raw      string   `json:"raw"`
	Name     string   `json:"name"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
}

// rule extracts a language's namespace from free text.
type rule struct {
	pattern *regexp.Regexp
	// name derives the resource provider name from the submatches and
	// returns any paired-capture mismatch error.
	name func(m []string) (string, string)
}

var rules = map[Language]rule{
	DotNet: {
		pattern: regexp.MustCompile(`Azure\.ResourceManager\.([A-Z][A-Za-z0-9]*)`),
		name: func(m []string) (string, string) {
			return m[1], ""
		},
	},
	Java: {
		pattern: regexp.MustCompile(`(?i)azure-resourcemanager-([a-z0-9]+(?:-[a-z0-9]+)*)(?:\s*\(\s*com\.azure\.resourcemanager\.([a-z0-9]+)\s*\))?`),
		name: func(m []string) (string, string) {
			name := strings.ReplaceAll(strings.ToLower(m[1]), "-", "")
			if m[2] != "" && normalize(m[2]) != name {
				return name, fmt.Sprintf("Java package name %q does not match namespace %q", "com.azure.resourcemanager."+m[2], "azure-resourcemanager-"+strings.ToLower(m[1]))
			}
			return name, ""
		},
	},
	Go: {
		pattern: regexp.MustCompile(`(?i)sdk/resourcemanager/([a-z0-9]+)/arm([a-z0-9]+)`),
		name: func(m []string) (string, string) {
			name := strings.ToLower(m[1])
			if !strings.EqualFold(m[1], m[2]) {
				return name, fmt.Sprintf("Go module alias %q does not match service directory %q", "arm"+m[2], m[1])
			}
			return name, ""
		},
	},
	JavaScript: {
		pattern: regexp.MustCompile(`(?i)@azure/arm-([a-z0-9]+(?:-[a-z0-9]+)*)`),
		name: func(m []string) (string, string) {
			return strings.ReplaceAll(strings.ToLower(m[1]), "-", ""), ""
		},
	},
	Python: {
		pattern: regexp.MustCompile(`(?i)azure-mgmt-([a-z0-9]+(?:-[a-z0-9]+)*)`),
		name: func(m []string) (string, string) {
			return strings.ReplaceAll(strings.ToLower(m[1]), "-", ""), ""
		},
	},
}

// extract applies the language's rule to body. The second return value is
// false when the language's namespace is not present.
func extract(lang Language, body string) (Namespace, bool) {
	r, ok := rules[lang]
	if !ok {
		return Namespace{}, false
	}
	m := r.pattern.FindStringSubmatch(body)
	if m == nil {
		return Namespace{}, false
	}

	ns := Namespace{Language: lang, Raw: m[0]}
	name, mismatch := r.name(m)
	ns.Name = name
	if mismatch != "" {
		ns.Errors = append(ns.Errors, mismatch)
	}
	if strings.Contains(strings.ToLower(name), "azure") {
		ns.Errors = append(ns.Errors, fmt.Sprintf("%s resource provider name %q must not contain \"Azure\"; the namespace prefix already includes it", lang, name))
	}
	ns.Valid = len(ns.Errors) == 0
	return ns, true
}

// normalize folds a resource provider name for cross-language comparison.
func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "")
	return strings.ReplaceAll(name, "_", "")
}
