package pipeline

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CandidateURLs builds the deterministic research URL set for a contact:
// company-site pages from the domain, social company-page guesses from the
// company name, and a companies-registry search. The set is de-duplicated
// and ordered; no network call happens here.
func CandidateURLs(domain, companyName string) []string {
	var urls []string

	if d := normalizeDomain(domain); d != "" {
		root := "https://" + d
		urls = append(urls,
			root,
			root+"/contact",
			root+"/about",
			root+"/privacy",
			root+"/terms",
		)
	}

	if slug := companySlug(companyName); slug != "" {
		compact := strings.ReplaceAll(slug, "-", "")
		urls = append(urls,
			"https://www.linkedin.com/company/"+slug,
			"https://twitter.com/"+compact,
			"https://www.facebook.com/"+slug,
			"https://find-and-update.company-information.service.gov.uk/search?q="+url.QueryEscape(companyName),
		)
	}

	seen := make(map[string]bool, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}

// companySlug folds a company name to the lower-case dashed form used in
// social company-page URLs.
func companySlug(name string) string {
	folded := NormalizeName(name)
	var sb strings.Builder
	lastDash := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(sb.String(), "-")
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName lower-cases, trims, collapses whitespace, and strips
// diacritics, so "José  Smith" folds to "jose smith".
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(s), " ")
}
