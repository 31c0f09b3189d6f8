package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// dateLayouts are accepted by ISODate("...") and new Date("...").
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// toExtJSON rewrites a shell object literal into relaxed extended JSON. It
// accepts bare and single-quoted keys, single-quoted strings, Python-style
// True/False/None, ObjectId, ISODate and Date constructors, NumberInt,
// NumberLong and NumberDecimal wrappers, /regex/flags literals and trailing
// commas. Anything else is rejected; nothing is evaluated.
func toExtJSON(src string) (string, error) {
	var out strings.Builder
	var last byte
	emit := func(s string) {
		out.WriteString(s)
		if t := strings.TrimSpace(s); t != "" {
			last = t[len(t)-1]
		}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case isSpace(c):
			out.WriteByte(c)
			i++
		case c == '"' || c == '\'':
			s, next, err := readString(src, i)
			if err != nil {
				return "", err
			}
			emit(jsonString(s))
			i = next
		case c == ',':
			j := skipSpace(src, i+1)
			if j < len(src) && (src[j] == '}' || src[j] == ']') {
				i++
				continue
			}
			emit(",")
			i++
		case c == '{' || c == '}' || c == '[' || c == ']' || c == ':':
			emit(string(c))
			i++
		case c == '/' && (last == ':' || last == ',' || last == '[' || last == 0):
			lit, next, err := readRegex(src, i)
			if err != nil {
				return "", err
			}
			emit(lit)
			i = next
		case c == '-' || c == '+' || c == '.' || isDigit(c):
			j := i + 1
			for j < len(src) && strings.IndexByte("0123456789.eE+-", src[j]) >= 0 {
				j++
			}
			num, err := jsonNumber(src[i:j])
			if err != nil {
				return "", err
			}
			emit(num)
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if k := skipSpace(src, j); k < len(src) && src[k] == ':' {
				emit(jsonString(word))
				i = j
				continue
			}
			lit, next, err := convertWord(src, word, j)
			if err != nil {
				return "", err
			}
			emit(lit)
			i = next
		default:
			return "", fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return out.String(), nil
}

// convertWord translates a bare word in value position. j is the offset just
// past the word.
func convertWord(src, word string, j int) (string, int, error) {
	switch word {
	case "true", "True":
		return "true", j, nil
	case "false", "False":
		return "false", j, nil
	case "null", "None", "undefined":
		return "null", j, nil
	case "new":
		k := skipSpace(src, j)
		e := k
		for e < len(src) && isIdentPart(src[e]) {
			e++
		}
		if e == k {
			return "", 0, fmt.Errorf("expected constructor after new")
		}
		return convertWord(src, src[k:e], e)
	case "ObjectId":
		arg, ok, next, err := readCallArg(src, j)
		if err != nil {
			return "", 0, err
		}
		if !ok {
			return "", 0, fmt.Errorf("ObjectId requires a hex string")
		}
		id, err := primitive.ObjectIDFromHex(arg)
		if err != nil {
			return "", 0, fmt.Errorf("invalid ObjectId %q: %w", arg, err)
		}
		return fmt.Sprintf(`{"$oid":"%s"}`, id.Hex()), next, nil
	case "ISODate", "Date":
		arg, ok, next, err := readCallArg(src, j)
		if err != nil {
			return "", 0, err
		}
		t := time.Now().UTC()
		if ok {
			if t, err = parseDate(arg); err != nil {
				return "", 0, err
			}
		}
		return fmt.Sprintf(`{"$date":{"$numberLong":"%d"}}`, t.UnixMilli()), next, nil
	case "NumberInt", "NumberLong":
		arg, ok, next, err := readCallArg(src, j)
		if err != nil {
			return "", 0, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if !ok || err != nil {
			return "", 0, fmt.Errorf("%s requires an integer", word)
		}
		return strconv.FormatInt(n, 10), next, nil
	case "NumberDecimal":
		arg, ok, next, err := readCallArg(src, j)
		if err != nil {
			return "", 0, err
		}
		if _, err := primitive.ParseDecimal128(arg); !ok || err != nil {
			return "", 0, fmt.Errorf("NumberDecimal requires a decimal")
		}
		return fmt.Sprintf(`{"$numberDecimal":%s}`, jsonString(arg)), next, nil
	}
	return "", 0, fmt.Errorf("unsupported identifier %q", word)
}

// readCallArg reads "(arg)" or "()" starting at j. The argument may be a
// quoted string or a bare number.
func readCallArg(src string, j int) (string, bool, int, error) {
	k := skipSpace(src, j)
	if k >= len(src) || src[k] != '(' {
		return "", false, 0, fmt.Errorf("expected ( at offset %d", k)
	}
	k = skipSpace(src, k+1)
	if k < len(src) && src[k] == ')' {
		return "", false, k + 1, nil
	}

	var arg string
	if k < len(src) && (src[k] == '"' || src[k] == '\'') {
		s, next, err := readString(src, k)
		if err != nil {
			return "", false, 0, err
		}
		arg, k = s, next
	} else {
		e := k
		for e < len(src) && strings.IndexByte("0123456789.+-", src[e]) >= 0 {
			e++
		}
		if e == k {
			return "", false, 0, fmt.Errorf("unsupported constructor argument at offset %d", k)
		}
		arg, k = src[k:e], e
	}

	k = skipSpace(src, k)
	if k >= len(src) || src[k] != ')' {
		return "", false, 0, fmt.Errorf("expected ) at offset %d", k)
	}
	return arg, true, k + 1, nil
}

func readString(src string, i int) (string, int, error) {
	quote := src[i]
	var sb strings.Builder
	for j := i + 1; j < len(src); {
		if src[j] == quote {
			return sb.String(), j + 1, nil
		}
		if src[j] == '\\' && j+1 < len(src) && src[j+1] == '/' {
			sb.WriteByte('/')
			j += 2
			continue
		}
		r, _, tail, err := strconv.UnquoteChar(src[j:], quote)
		if err != nil {
			return "", 0, fmt.Errorf("invalid string literal at offset %d: %w", i, err)
		}
		sb.WriteRune(r)
		j = len(src) - len(tail)
	}
	return "", 0, fmt.Errorf("unterminated string at offset %d", i)
}

func readRegex(src string, i int) (string, int, error) {
	var pattern strings.Builder
	j := i + 1
	for ; j < len(src) && src[j] != '/'; j++ {
		if src[j] == '\\' && j+1 < len(src) {
			pattern.WriteByte(src[j])
			j++
		}
		pattern.WriteByte(src[j])
	}
	if j >= len(src) {
		return "", 0, fmt.Errorf("unterminated regex at offset %d", i)
	}
	j++
	start := j
	for j < len(src) && strings.IndexByte("imsxu", src[j]) >= 0 {
		j++
	}
	flags := []byte(src[start:j])
	sort.Slice(flags, func(a, b int) bool { return flags[a] < flags[b] })
	return fmt.Sprintf(`{"$regularExpression":{"pattern":%s,"options":%s}}`,
		jsonString(pattern.String()), jsonString(string(flags))), j, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// jsonNumber validates a numeric token and renders it as JSON, keeping a
// fractional marker on floats so they stay doubles.
func jsonNumber(tok string) (string, error) {
	tok = strings.TrimPrefix(tok, "+")
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %q", tok)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s, nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool  { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) || c == '.' }

// decodeValue parses one shell literal into a BSON value. Embedded documents
// come back as bson.D and arrays as bson.A.
func decodeValue(lit string) (interface{}, error) {
	js, err := toExtJSON(lit)
	if err != nil {
		return nil, err
	}
	var wrapper bson.D
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+js+`}`), false, &wrapper); err != nil {
		return nil, fmt.Errorf("decode literal: %w", err)
	}
	if len(wrapper) != 1 {
		return nil, fmt.Errorf("decode literal: unexpected shape")
	}
	return wrapper[0].Value, nil
}

// decodeDocument parses an object literal. An empty argument is the empty document.
func decodeDocument(lit string) (bson.D, error) {
	if strings.TrimSpace(lit) == "" {
		return bson.D{}, nil
	}
	v, err := decodeValue(lit)
	if err != nil {
		return nil, err
	}
	doc, ok := asDocument(v)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return doc, nil
}

func asDocument(v interface{}) (bson.D, bool) {
	switch t := v.(type) {
	case bson.D:
		return t, true
	case bson.M:
		d := make(bson.D, 0, len(t))
		for k, val := range t {
			d = append(d, bson.E{Key: k, Value: val})
		}
		return d, true
	}
	return nil, false
}
