package query

import (
	"regexp"
	"strings"
)

// NoQueryFound is returned by ExtractQuery when the completion holds no query.
const NoQueryFound = "Error: No valid MongoDB query found."

// DefaultCodeFields are the business-code fields whose values never contain spaces.
var DefaultCodeFields = []string{"package_code"}

// ValidPrefixes are the accepted starts of a candidate query.
var ValidPrefixes = []string{"db.", "db.getCollection(", "list(db.", "len(db."}

var (
	fencedBlockRe    = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_+-]*[ \\t]*\\n)?(.*?)```")
	unquotedKeyRe    = regexp.MustCompile(`(\{)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	contractFilterRe = regexp.MustCompile(`,\s*` + contractClause)
	leadingClauseRe  = regexp.MustCompile(contractClause + `\s*,?\s*`)
)

const contractClause = `"contracter_details\.contract_number"\s*:\s*\{\s*"?\$ne"?\s*:\s*""\s*\}`

// ExtractQuery pulls the first candidate query out of completion text: the
// first fenced code block if any, else the first line mentioning "db.".
func ExtractQuery(raw string) string {
	var q string
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		q = strings.TrimSpace(m[1])
	} else {
		for _, line := range strings.Split(raw, "\n") {
			if strings.Contains(line, "db.") {
				q = strings.TrimSpace(line)
				break
			}
		}
	}
	if q == "" {
		return NoQueryFound
	}
	return q
}

// QuoteKeys quotes a bare identifier key that directly follows an opening brace:
// {status: 1} becomes { "status": 1}. Only the first key of each object is
// reached; later keys are left to the literal decoder.
func QuoteKeys(q string) string {
	return strings.TrimSpace(unquotedKeyRe.ReplaceAllString(q, `${1} "${2}":`))
}

// NormalizeBusinessCodes replaces spaces with hyphens inside the string value
// of each named code field.
func NormalizeBusinessCodes(q string, fields []string) string {
	for _, field := range fields {
		if !strings.Contains(q, field) {
			continue
		}
		re := regexp.MustCompile(`("` + regexp.QuoteMeta(field) + `"\s*:\s*")([^"]+)"`)
		q = re.ReplaceAllStringFunc(q, func(match string) string {
			m := re.FindStringSubmatch(match)
			return m[1] + strings.ReplaceAll(m[2], " ", "-") + `"`
		})
	}
	return q
}

// StripContractFilter removes the contract-number filter from any position in
// the query unless the user asked about contract fleets.
func StripContractFilter(q, userText string) string {
	if strings.Contains(strings.ToLower(userText), "contract fleet") {
		return q
	}
	q = contractFilterRe.ReplaceAllString(q, "")
	return leadingClauseRe.ReplaceAllString(q, "")
}

// IsValid reports whether the trimmed query starts with an accepted prefix.
func IsValid(q string) bool {
	q = strings.TrimSpace(q)
	for _, p := range ValidPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}

// Sanitizer turns raw completion text into a candidate query.
type Sanitizer struct {
	CodeFields []string
}

func NewSanitizer(codeFields []string) *Sanitizer {
	if len(codeFields) == 0 {
		codeFields = DefaultCodeFields
	}
	return &Sanitizer{CodeFields: codeFields}
}

// Clean runs extraction, key quoting, code normalization and contract
// stripping, in that order.
func (s *Sanitizer) Clean(raw, userText string) string {
	q := ExtractQuery(raw)
	q = QuoteKeys(q)
	q = NormalizeBusinessCodes(q, s.CodeFields)
	return StripContractFilter(q, userText)
}
