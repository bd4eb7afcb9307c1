// Package render handles the display-only placeholder tokens a reminder
// message may carry. The tokens have no effect on scheduling.
package render

import (
	"strconv"
	"strings"
)

const (
	offsetToken  = "{{offset}}"
	mentionToken = "{{all}}"
)

// Interpolate substitutes the placeholder tokens for a concrete advance
// notice: {{offset}} becomes "in N min" (or "now" at zero), {{all}}
// becomes an everyone mention.
func Interpolate(message string, offsetMinutes int) string {
	offsetText := "now"
	if offsetMinutes > 0 {
		offsetText = "in " + strconv.Itoa(offsetMinutes) + " min"
	}
	result := strings.ReplaceAll(message, offsetToken, offsetText)
	result = strings.ReplaceAll(result, mentionToken, "@everyone")
	return result
}

// Strip removes the placeholder tokens for plain display, collapsing the
// whitespace they leave behind.
func Strip(message string) string {
	result := strings.ReplaceAll(message, offsetToken, "")
	result = strings.ReplaceAll(result, mentionToken, "")
	return strings.Join(strings.Fields(result), " ")
}
