package version

import (
	"regexp"
	"strings"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// spacedHyphen matches a range hyphen written with surrounding blanks, as in "4.0 - 5.0".
var spacedHyphen = regexp.MustCompile(`\s*-\s*`)

// Matcher tests installed versions against affected-versions expressions.
type Matcher struct {
	Compare CompareFunc
}

// NewMatcher returns a Matcher using cmp, or Compare when cmp is nil.
func NewMatcher(cmp CompareFunc) Matcher {
	if cmp == nil {
		cmp = Compare
	}
	return Matcher{Compare: cmp}
}

// IsVulnerable reports whether installed is covered by expr using Compare.
func IsVulnerable(installed, expr string) bool {
	return NewMatcher(nil).IsVulnerable(installed, expr)
}

// IsVulnerable reports whether installed is covered by expr.
//
// expr is a whitespace-separated list of tokens evaluated in order. A token
// "start-end" is an inclusive range; any other token must equal installed
// exactly ("1.0" does not match "1.0.0"). The first matching token wins.
// An unknown installed version only matches a literal "Unknown" token.
func (m Matcher) IsVulnerable(installed, expr string) bool {
	cmp := m.Compare
	if cmp == nil {
		cmp = Compare
	}

	for _, token := range Tokens(expr) {
		start, end, isRange := splitRange(token)
		if !isRange {
			if token == installed {
				return true
			}
			continue
		}
		if installed == models.UnknownVersion {
			continue
		}
		if cmp(start, installed) <= 0 && cmp(end, installed) >= 0 {
			return true
		}
	}
	return false
}

// Tokens splits an affected-versions expression into its tokens.
func Tokens(expr string) []string {
	expr = spacedHyphen.ReplaceAllString(strings.TrimSpace(expr), "-")
	return strings.Fields(expr)
}

// splitRange splits "start-end" on the first hyphen. Tokens with an empty
// bound on either side are not ranges.
func splitRange(token string) (start, end string, ok bool) {
	start, end, found := strings.Cut(token, "-")
	if !found {
		return "", "", false
	}
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}
