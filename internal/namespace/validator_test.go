package namespace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specLink = "https://github.com/Azure/azure-rest-api-specs/tree/main/specification/widgets"

func body(lines ...string) string {
	return strings.Join(lines, "\n")
}

func validBody() string {
	return body(
		"## Namespace proposal",
		"- .NET: Azure.ResourceManager.Widgets",
		"- Java: azure-resourcemanager-widgets (com.azure.resourcemanager.widgets)",
		"- Go: sdk/resourcemanager/widgets/armwidgets",
		"- JavaScript: @azure/arm-widgets",
		"- Python: azure-mgmt-widgets",
		"",
		"API spec: "+specLink,
	)
}

func TestValidate_AllLanguagesValid(t *testing.T) {
	res := NewValidator("").Validate(validBody())

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.MissingLanguages)
	assert.True(t, res.HasSpecLink)
	require.Len(t, res.Namespaces, 5)
	assert.Equal(t, "Widgets", res.CanonicalName())

	for _, ns := range res.Namespaces {
		assert.True(t, ns.Valid, "%s should be valid", ns.Language)
		assert.Equal(t, "widgets", normalize(ns.Name), "%s name", ns.Language)
	}
}

func TestValidate_ExtractionPerLanguage(t *testing.T) {
	tests := []struct {
		lang Language
		text string
		raw  string
		name string
	}{
		{DotNet, "Azure.ResourceManager.ContainerApps", "Azure.ResourceManager.ContainerApps", "ContainerApps"},
		{Java, "azure-resourcemanager-containerapps", "azure-resourcemanager-containerapps", "containerapps"},
		{Java, "Azure-ResourceManager-ContainerApps", "Azure-ResourceManager-ContainerApps", "containerapps"},
		{Java, "azure-resourcemanager-web-pubsub", "azure-resourcemanager-web-pubsub", "webpubsub"},
		{Go, "sdk/resourcemanager/containerapps/armcontainerapps", "sdk/resourcemanager/containerapps/armcontainerapps", "containerapps"},
		{JavaScript, "@azure/arm-container-apps", "@azure/arm-container-apps", "containerapps"},
		{Python, "azure-mgmt-container-apps", "azure-mgmt-container-apps", "containerapps"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+tt.text, func(t *testing.T) {
			ns, ok := extract(tt.lang, "Proposed: "+tt.text+"\n")
			require.True(t, ok)
			assert.Equal(t, tt.raw, ns.Raw)
			assert.Equal(t, tt.name, ns.Name)
			assert.True(t, ns.Valid)
		})
	}
}

func TestValidate_DotNetRequiresUppercaseName(t *testing.T) {
	_, ok := extract(DotNet, "Azure.ResourceManager.widgets")
	assert.False(t, ok)
}

func TestValidate_JavaPackageMismatch(t *testing.T) {
	ns, ok := extract(Java, "azure-resourcemanager-widgets (com.azure.resourcemanager.gadgets)")
	require.True(t, ok)
	assert.False(t, ns.Valid)
	require.Len(t, ns.Errors, 1)
	assert.Contains(t, ns.Errors[0], "com.azure.resourcemanager.gadgets")
}

func TestValidate_JavaHyphenatedPackageMatches(t *testing.T) {
	ns, ok := extract(Java, "azure-resourcemanager-container-apps (com.azure.resourcemanager.containerapps)")
	require.True(t, ok)
	assert.True(t, ns.Valid)
	assert.Equal(t, "containerapps", ns.Name)
}

func TestValidate_GoAliasMismatch(t *testing.T) {
	ns, ok := extract(Go, "sdk/resourcemanager/widgets/armgadgets")
	require.True(t, ok)
	assert.False(t, ns.Valid)
	require.Len(t, ns.Errors, 1)
	assert.Contains(t, ns.Errors[0], "armgadgets")
}

func TestValidate_AzureInName(t *testing.T) {
	tests := []struct {
		lang Language
		text string
	}{
		{DotNet, "Azure.ResourceManager.AzureWidgets"},
		{Java, "azure-resourcemanager-azurewidgets"},
		{Go, "sdk/resourcemanager/azurewidgets/armazurewidgets"},
		{JavaScript, "@azure/arm-azure-widgets"},
		{Python, "azure-mgmt-AZUREwidgets"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			ns, ok := extract(tt.lang, tt.text)
			require.True(t, ok)
			assert.False(t, ns.Valid)
			require.NotEmpty(t, ns.Errors)
			assert.Contains(t, ns.Errors[len(ns.Errors)-1], "must not contain \"Azure\"")
		})
	}
}

func TestValidate_AzureInNameInvalidatesResult(t *testing.T) {
	b := strings.Replace(validBody(), "Azure.ResourceManager.Widgets", "Azure.ResourceManager.AzureWidgets", 1)
	res := NewValidator("").Validate(b)

	assert.False(t, res.IsValid)
	require.Len(t, res.AzureViolations(), 1)
	assert.Equal(t, DotNet, res.AzureViolations()[0].Language)
}

func TestValidate_MissingLanguages(t *testing.T) {
	b := body(
		"Azure.ResourceManager.Widgets",
		"azure-mgmt-widgets",
		specLink,
	)
	res := NewValidator("").Validate(b)

	assert.False(t, res.IsValid)
	assert.Equal(t, []Language{Java, Go, JavaScript}, res.MissingLanguages)
	assert.Contains(t, res.Errors, "Missing Go namespace")
	assert.Empty(t, res.ConsistencyErrors)
}

func TestValidate_InconsistentNames(t *testing.T) {
	b := strings.Replace(validBody(), "azure-mgmt-widgets", "azure-mgmt-gadgets", 1)
	res := NewValidator("").Validate(b)

	assert.False(t, res.IsValid)
	require.Len(t, res.ConsistencyErrors, 1)
	msg := res.ConsistencyErrors[0]
	assert.Contains(t, msg, "Python (gadgets)")
	assert.Contains(t, msg, ".NET (Widgets)")
}

func TestValidate_InconsistentPairNamesBothLanguages(t *testing.T) {
	b := body("Azure.ResourceManager.Widgets", "@azure/arm-gadgets", specLink)
	res := NewValidator("").Validate(b)

	require.Len(t, res.ConsistencyErrors, 1)
	assert.Contains(t, res.ConsistencyErrors[0], ".NET")
	assert.Contains(t, res.ConsistencyErrors[0], "JavaScript")
}

func TestValidate_NormalizationIgnoresHyphensAndCase(t *testing.T) {
	b := body(
		"Azure.ResourceManager.ContainerApps",
		"azure-resourcemanager-container-apps",
		"sdk/resourcemanager/containerapps/armcontainerapps",
		"@azure/arm-containerapps",
		"azure-mgmt-container-apps",
		specLink,
	)
	res := NewValidator("").Validate(b)

	assert.True(t, res.IsValid, "errors: %v", res.Errors)
}

func TestValidate_MissingSpecLink(t *testing.T) {
	b := strings.Replace(validBody(), "API spec: "+specLink, "", 1)
	res := NewValidator("").Validate(b)

	assert.False(t, res.IsValid)
	assert.False(t, res.HasSpecLink)
	assert.Len(t, res.Errors, 1)
}

func TestValidate_CustomSpecLink(t *testing.T) {
	v := NewValidator("example.com/specs")
	res := v.Validate(strings.Replace(validBody(), specLink, "https://example.com/specs/widgets", 1))
	assert.True(t, res.HasSpecLink)
}

func TestValidate_EmptyBody(t *testing.T) {
	res := NewValidator("").Validate("")

	assert.False(t, res.IsValid)
	assert.Len(t, res.MissingLanguages, 5)
	assert.Empty(t, res.Namespaces)
	assert.Equal(t, "", res.CanonicalName())
}

func TestNamespaceMap(t *testing.T) {
	b := body("Azure.ResourceManager.Widgets", "azure-mgmt-widgets")
	res := NewValidator("").Validate(b)
	m := res.NamespaceMap()

	assert.Len(t, m, 5)
	assert.Equal(t, "Azure.ResourceManager.Widgets", m[DotNet])
	assert.Equal(t, "azure-mgmt-widgets", m[Python])
	assert.Equal(t, Missing, m[Go])
	assert.Equal(t, Missing, res.StringMap()["Java"])
}

func TestCanonicalName_FallsBackToFirstNamespace(t *testing.T) {
	res := NewValidator("").Validate(body("@azure/arm-widgets", "azure-mgmt-widgets"))
	assert.Equal(t, "widgets", res.CanonicalName())
}

func TestErrorComment(t *testing.T) {
	b := body(
		"Azure.ResourceManager.AzureWidgets",
		"azure-resourcemanager-azurewidgets",
		"@azure/arm-azurewidgets",
		"azure-mgmt-azurewidgets",
		specLink,
	)
	res := NewValidator("").Validate(b)
	comment := res.ErrorComment("octocat")

	assert.True(t, strings.HasPrefix(comment, "@octocat"))
	assert.Contains(t, comment, "**Missing namespaces**\n- Go")
	assert.Contains(t, comment, "must not contain \"Azure\"")
	assert.NotContains(t, comment, "Missing API spec link")
}

func TestErrorComment_MissingSpecLink(t *testing.T) {
	res := NewValidator("").Validate("nothing here")
	comment := res.ErrorComment("someone")
	assert.Contains(t, comment, "Missing API spec link")
	for _, lang := range Languages {
		assert.Contains(t, comment, "- "+string(lang))
	}
}
