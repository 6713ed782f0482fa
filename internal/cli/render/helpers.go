package render

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[mGKHF]`)

// FormatWarning formats a warning message with the warning icon
func FormatWarning(message string) string {
	return color.New(color.FgYellow).Sprintf("⚠️  %s", message)
}

// FormatError formats an error message with the error icon
func FormatError(message string) string {
	return color.New(color.FgRed).Sprintf("❌ Error: %s", message)
}

// FormatSuccess formats a success message with the success icon
func FormatSuccess(message string) string {
	return color.New(color.FgGreen).Sprintf("✅ %s", message)
}

// titleCase renders an upper-case status such as VERIFIED as "Verified"
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// stripAnsiCodes removes ANSI escape sequences from a string
func stripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
