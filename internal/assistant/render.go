package assistant

import (
	"regexp"
	"strings"
)

var (
	listItemRe  = regexp.MustCompile(`(?m)^- (.*)$`)
	paragraphRe = regexp.MustCompile(`(?:\r\n|\r|\n){2,}`)
)

// RenderHTML converts the report markup to display HTML. Only four patterns
// are recognized: **bold**, *italic*, "- " list items and blank-line paragraph
// breaks. Anything else passes through as literal text.
func RenderHTML(s string) string {
	// Escape entities first so unrendered markup stays literal
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	// Bold: **...** -> <strong>...</strong>
	for {
		start := strings.Index(s, "**")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+2:], "**")
		if end == -1 {
			break
		}
		end += start + 2
		s = s[:start] + "<strong>" + s[start+2:end] + "</strong>" + s[end+2:]
	}

	// Italic: *...* -> <em>...</em> (after bold to avoid conflicts)
	for {
		start := strings.Index(s, "*")
		if start == -1 {
			break
		}
		end := strings.Index(s[start+1:], "*")
		if end == -1 {
			break
		}
		end += start + 1
		s = s[:start] + "<em>" + s[start+1:end] + "</em>" + s[end+1:]
	}

	s = listItemRe.ReplaceAllString(s, "<li>$1</li>")
	s = paragraphRe.ReplaceAllString(s, "<br/><br/>")

	return s
}
