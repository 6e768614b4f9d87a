package inventory

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var DefaultQuantityUnits = []string{"個", "つ"}

// QuantityParser pulls a unit count such as "2個" or "３つ" out of free text.
type QuantityParser struct {
	pattern *regexp.Regexp
}

func NewQuantityParser(units []string) *QuantityParser {
	if len(units) == 0 {
		units = DefaultQuantityUnits
	}
	quoted := make([]string, 0, len(units))
	for _, u := range units {
		if u = strings.TrimSpace(u); u != "" {
			quoted = append(quoted, regexp.QuoteMeta(u))
		}
	}
	if len(quoted) == 0 {
		return NewQuantityParser(DefaultQuantityUnits)
	}
	return &QuantityParser{
		pattern: regexp.MustCompile(`([0-9０-９]+)(?:` + strings.Join(quoted, "|") + `)`),
	}
}

// Extract returns the first numeral followed by a unit word, with full-width digits
// folded to ASCII. It returns 1 and false when the text carries no usable count.
func (p *QuantityParser) Extract(text string) (int, bool) {
	m := p.pattern.FindStringSubmatch(text)
	if m == nil {
		return 1, false
	}
	n, err := strconv.Atoi(width.Fold.String(m[1]))
	if err != nil || n <= 0 {
		return 1, false
	}
	return n, true
}

var defaultQuantityParser = NewQuantityParser(DefaultQuantityUnits)

// ExtractQuantity parses text with the default unit words.
func ExtractQuantity(text string) int {
	n, _ := defaultQuantityParser.Extract(text)
	return n
}
