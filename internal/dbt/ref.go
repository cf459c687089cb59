package dbt

import "regexp"

// refPattern matches ref('name') and ref("name").
var refPattern = regexp.MustCompile(`ref\(['"]([\p{L}\p{N}_\- ]+)['"]\)`)

// ParseRef returns the model name referenced by the first ref() expression in
// text. Text without a ref() expression is a literal table name and is
// returned unchanged.
func ParseRef(text string) string {
	matches := refPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return text
	}
	return matches[1]
}
