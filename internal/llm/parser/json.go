// Package parser recovers structured data from free-form model output.
package parser

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractObject returns the JSON object embedded in text. Models often wrap
// JSON in markdown fences, add a sentence around it or leave a trailing
// comma; those are stripped. The second result is false when no valid
// object could be recovered, in which case text is returned trimmed.
func ExtractObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if isObject(text) {
		return text, true
	}

	candidate := text
	if m := fenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	if start := strings.Index(candidate, "{"); start != -1 {
		if end := strings.LastIndex(candidate, "}"); end > start {
			candidate = candidate[start : end+1]
		}
	}
	if isObject(candidate) {
		return candidate, true
	}

	candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	if isObject(candidate) {
		return candidate, true
	}
	return text, false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
