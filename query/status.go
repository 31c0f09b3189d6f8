package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status is a trip lifecycle state and its stored numeric code.
type Status struct {
	Name string
	Code int
}

// StatusCodes lists every trip status in code order.
var StatusCodes = []Status{
	{"assigned", 0},
	{"scheduled", 1},
	{"ongoing", 2},
	{"rejected", 3},
	{"cancelled", 4},
	{"completed", 5},
	{"verified", 6},
	{"interrupted", 7},
	{"malfunctioned", 8},
	{"recalled", 9},
}

var statusPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(StatusCodes))
	for i, s := range StatusCodes {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s.Name) + `\b`)
	}
	return out
}()

// StatusCode returns the code for a status name, case-insensitively.
func StatusCode(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range StatusCodes {
		if s.Name == name {
			return s.Code, true
		}
	}
	return 0, false
}

// MapStatus rewrites status words in a user question into their numeric codes.
// When the text never says "status", a " with status N" clause is appended for
// each status word found; otherwise each whole-word occurrence is replaced by
// its code. Statuses are processed in code order and the effects accumulate.
//
// Any mention of "status" switches to substitution, even when it refers to
// something other than the trip status field.
func MapStatus(text string) string {
	for i, s := range StatusCodes {
		re := statusPatterns[i]
		if !re.MatchString(text) {
			continue
		}
		if !strings.Contains(strings.ToLower(text), "status") {
			text += fmt.Sprintf(" with status %d", s.Code)
		} else {
			text = re.ReplaceAllLiteralString(text, strconv.Itoa(s.Code))
		}
	}
	return text
}
