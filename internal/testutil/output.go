// Package testutil provides helpers for asserting on terminal output.
package testutil

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// ansiRegex matches CSI sequences: ESC [ parameters, then a final letter.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripAnsiCodes removes ANSI escape codes so that colored output can be
// compared as plain text.
func StripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// ReportValue returns the value of the first "label : value" line of a
// result display, colors stripped. Labels are padded with spaces before the
// colon, so only the trimmed label is compared.
func ReportValue(output, label string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(StripAnsiCodes(output)))
	for scanner.Scan() {
		name, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(name) == label {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// ReportFloat is ReportValue for numeric lines; trailing text after the
// number, such as units or a parenthesized note, is ignored.
func ReportFloat(output, label string) (float64, bool) {
	value, ok := ReportValue(output, label)
	if !ok {
		return 0, false
	}
	field, _, _ := strings.Cut(value, " ")
	f, err := strconv.ParseFloat(field, 64)
	return f, err == nil
}
