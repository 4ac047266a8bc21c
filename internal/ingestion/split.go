package ingestion

import (
	"regexp"
	"strings"
)

var numberedItem = regexp.MustCompile(`^\s*[0-9۰-۹]+\s*[-.)]\s*`)

// SplitNumbered breaks a cell written as a numbered list ("1- ...", "2. ...")
// into one entry per item. Continuation lines stay with their item. Cells
// without numbering come back as a single entry.
func SplitNumbered(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var items []string
	var cur []string
	flush := func() {
		if s := strings.TrimSpace(strings.Join(cur, "\n")); s != "" {
			items = append(items, s)
		}
		cur = nil
	}

	numbered := false
	for _, line := range strings.Split(text, "\n") {
		if loc := numberedItem.FindStringIndex(line); loc != nil {
			flush()
			numbered = true
			line = line[loc[1]:]
		}
		cur = append(cur, line)
	}
	flush()

	if !numbered {
		return []string{text}
	}
	return items
}
