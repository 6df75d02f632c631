// Package equations finds candidate LaTeX math fragments in plain text.
package equations

import "regexp"

// patterns are applied in this order; results are concatenated without
// deduplication. Inline and display math stay on one line, environments may
// span lines.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\$(.*?)\$`),
	regexp.MustCompile(`\\\[(.*?)\\\]`),
	regexp.MustCompile(`(?s)\\begin\{equation\}(.*?)\\end\{equation\}`),
	regexp.MustCompile(`(?s)\\begin\{align\}(.*?)\\end\{align\}`),
	regexp.MustCompile(`(?s)\\begin\{gather\}(.*?)\\end\{gather\}`),
	regexp.MustCompile(`(?s)\\begin\{multline\}(.*?)\\end\{multline\}`),
}

// Extract returns the inner text of every delimited fragment in text, grouped
// by delimiter style. It never returns nil.
func Extract(text string) []string {
	found := []string{}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			found = append(found, m[1])
		}
	}
	return found
}

// ExtractPages runs Extract on each page and concatenates the results in page
// order.
func ExtractPages(pages []string) []string {
	found := []string{}
	for _, page := range pages {
		found = append(found, Extract(page)...)
	}
	return found
}
