package namespace

import (
	"fmt"
	"strings"
)

// DefaultSpecLink is the substring identifying a link to the REST API specs repo.
const DefaultSpecLink = "github.com/Azure/azure-rest-api-specs"

// Missing is the placeholder used for languages without a namespace.
const Missing = "(missing)"

// Result is the outcome of validating one issue body.
type Result struct {
	IsValid           bool        `json:"isValid"`
	Namespaces        []Namespace `json:"namespaces"`
	HasSpecLink       bool        `json:"hasSpecLink"`
	MissingLanguages  []Language  `json:"missingLanguages"`
	ConsistencyErrors []string    `json:"consistencyErrors,omitempty"`
	Errors            []string    `json:"errors"`
}

// Validator checks namespace proposals against the per-language rules.
type Validator struct {
	SpecLink string
}

// NewValidator returns a Validator looking for the given spec link substring.
// An empty link falls back to DefaultSpecLink.
func NewValidator(specLink string) *Validator {
	if specLink == "" {
		specLink = DefaultSpecLink
	}
	return &Validator{SpecLink: specLink}
}

// Validate extracts and checks every language's namespace in body.
// It never fails; problems are reported in the result.
func (v *Validator) Validate(body string) *Result {
	res := &Result{}

	for _, lang := range Languages {
		ns, ok := extract(lang, body)
		if !ok {
			res.MissingLanguages = append(res.MissingLanguages, lang)
			continue
		}
		res.Namespaces = append(res.Namespaces, ns)
	}

	for _, lang := range res.MissingLanguages {
		res.Errors = append(res.Errors, fmt.Sprintf("Missing %s namespace", lang))
	}
	for _, ns := range res.Namespaces {
		res.Errors = append(res.Errors, ns.Errors...)
	}

	if msg := consistencyError(res.Namespaces); msg != "" {
		res.ConsistencyErrors = append(res.ConsistencyErrors, msg)
		res.Errors = append(res.Errors, msg)
	}

	res.HasSpecLink = strings.Contains(strings.ToLower(body), strings.ToLower(v.SpecLink))
	if !res.HasSpecLink {
		res.Errors = append(res.Errors, fmt.Sprintf("Missing link to the API spec (expected a link containing %s)", v.SpecLink))
	}

	res.IsValid = len(res.MissingLanguages) == 0 &&
		allValid(res.Namespaces) &&
		len(res.ConsistencyErrors) == 0 &&
		res.HasSpecLink
	return res
}

// consistencyError compares normalized names across the present namespaces.
// The most common name is taken as the reference; ties go to language order.
func consistencyError(nss []Namespace) string {
	if len(nss) < 2 {
		return ""
	}

	counts := map[string]int{}
	for _, ns := range nss {
		counts[normalize(ns.Name)]++
	}
	if len(counts) == 1 {
		return ""
	}

	ref := normalize(nss[0].Name)
	for _, ns := range nss {
		if n := normalize(ns.Name); counts[n] > counts[ref] {
			ref = n
		}
	}

	var agree, differ []string
	for _, ns := range nss {
		entry := fmt.Sprintf("%s (%s)", ns.Language, ns.Name)
		if normalize(ns.Name) == ref {
			agree = append(agree, entry)
		} else {
			differ = append(differ, entry)
		}
	}
	return fmt.Sprintf("Resource provider name is inconsistent across languages: %s differ from %s",
		strings.Join(differ, ", "), strings.Join(agree, ", "))
}

func allValid(nss []Namespace) bool {
	for _, ns := range nss {
		if !ns.Valid {
			return false
		}
	}
	return true
}

// Namespace returns the namespace found for lang, if any.
func (r *Result) Namespace(lang Language) (Namespace, bool) {
	for _, ns := range r.Namespaces {
		if ns.Language == lang {
			return ns, true
		}
	}
	return Namespace{}, false
}

// NamespaceMap maps every language to its raw namespace text, or Missing.
func (r *Result) NamespaceMap() map[Language]string {
	m := make(map[Language]string, len(Languages))
	for _, lang := range Languages {
		m[lang] = Missing
	}
	for _, ns := range r.Namespaces {
		m[ns.Language] = ns.Raw
	}
	return m
}

// StringMap is NamespaceMap keyed by language name, for JSON output.
func (r *Result) StringMap() map[string]string {
	m := map[string]string{}
	for lang, raw := range r.NamespaceMap() {
		m[string(lang)] = raw
	}
	return m
}

// CanonicalName returns the resource provider name used for subjects and
// titles: the .NET name when present, otherwise the first one found.
func (r *Result) CanonicalName() string {
	if ns, ok := r.Namespace(DotNet); ok {
		return ns.Name
	}
	if len(r.Namespaces) > 0 {
		return r.Namespaces[0].Name
	}
	return ""
}

// AzureViolations returns the namespaces whose name repeats "azure".
func (r *Result) AzureViolations() []Namespace {
	var out []Namespace
	for _, ns := range r.Namespaces {
		if strings.Contains(strings.ToLower(ns.Name), "azure") {
			out = append(out, ns)
		}
	}
	return out
}

// ErrorComment renders the issue comment asking author to fix the proposal.
func (r *Result) ErrorComment(author string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s, thanks for the namespace proposal. A few things need fixing before it can be reviewed:\n\n", author)

	if len(r.MissingLanguages) > 0 {
		b.WriteString("**Missing namespaces**\n")
		for _, lang := range r.MissingLanguages {
			fmt.Fprintf(&b, "- %s\n", lang)
		}
		b.WriteString("\n")
	}

	var nsErrs []string
	for _, ns := range r.Namespaces {
		nsErrs = append(nsErrs, ns.Errors...)
	}
	if len(nsErrs) > 0 {
		b.WriteString("**Namespace problems**\n")
		for _, e := range nsErrs {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if len(r.ConsistencyErrors) > 0 {
		b.WriteString("**Inconsistent names**\n")
		for _, e := range r.ConsistencyErrors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if !r.HasSpecLink {
		b.WriteString("**Missing API spec link**\n- Please link the service's REST API specification in azure-rest-api-specs.\n\n")
	}

	b.WriteString("Please update the issue description; it will be checked again on the next run.")
	return b.String()
}
