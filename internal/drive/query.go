package drive

import (
	"fmt"
	"strings"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// BuildQuery returns the Drive filter for a search term, or "" when the term is empty.
//
// Examples:
//
//	BuildQuery("")        // ""
//	BuildQuery("report")  // name contains 'report'
//	BuildQuery("O'Brien") // name contains 'O\'Brien'
func BuildQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	return fmt.Sprintf("name contains '%s'", queryEscaper.Replace(query))
}

// ViewURL returns the Drive web viewer link for a file
func ViewURL(fileID string) string {
	return fmt.Sprintf(viewURLFormat, fileID)
}
