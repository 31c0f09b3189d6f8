package query

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "fleetwise/errors"

	"go.mongodb.org/mongo-driver/bson"
)

// Op is a supported query operation.
type Op string

const (
	OpFind      Op = "find"
	OpFindOne   Op = "findOne"
	OpCount     Op = "count"
	OpDistinct  Op = "distinct"
	OpAggregate Op = "aggregate"
)

// ForbiddenOperators may not appear anywhere in a filter or pipeline.
var ForbiddenOperators = map[string]bool{
	"$where":       true,
	"$function":    true,
	"$accumulator": true,
	"$out":         true,
	"$merge":       true,
}

// AllowedStages are the aggregation stages an intent may use.
var AllowedStages = map[string]bool{
	"$match":       true,
	"$group":       true,
	"$project":     true,
	"$sort":        true,
	"$limit":       true,
	"$skip":        true,
	"$count":       true,
	"$unwind":      true,
	"$lookup":      true,
	"$addFields":   true,
	"$set":         true,
	"$sortByCount": true,
}

// Intent is a parsed, read-only query. Only the members relevant to Op are set.
type Intent struct {
	Collection string
	Op         Op
	Filter     bson.D
	Projection bson.D
	Sort       bson.D
	Skip       int64
	Limit      int64
	Field      string
	Pipeline   []bson.D
	// Len reports the number of results instead of the results themselves.
	Len bool
	// Text is the query the intent was parsed from.
	Text string
}

// call is one ".name(args)" segment of a query chain.
type call struct {
	name string
	args []string
}

// ParseIntent converts a candidate query into an Intent without evaluating it.
// Accepted shapes:
//
//	db.<coll>.<op>(args)[.sort(doc)][.skip(n)][.limit(n)][.count()]
//	db.getCollection("<coll>").<op>(args)...
//	list(<query>) and len(<query>)
func ParseIntent(q string) (*Intent, error) {
	text := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(q), ";"))
	in := &Intent{Text: strings.TrimSpace(q)}

	body := text
	for {
		switch {
		case hasWrapper(body, "list"):
			body = unwrap(body, "list")
			continue
		case hasWrapper(body, "len"):
			body = unwrap(body, "len")
			in.Len = true
			continue
		}
		break
	}

	collection, rest, err := parseCollection(body)
	if err != nil {
		return nil, invalid(err)
	}
	in.Collection = collection

	calls, err := parseCalls(rest)
	if err != nil {
		return nil, invalid(err)
	}
	if len(calls) == 0 {
		return nil, invalid(fmt.Errorf("no operation on collection %q", collection))
	}
	if err := in.applyOp(calls[0]); err != nil {
		return nil, invalid(err)
	}
	for _, c := range calls[1:] {
		if err := in.applyModifier(c); err != nil {
			return nil, invalid(err)
		}
	}
	if err := in.check(); err != nil {
		return nil, invalid(err)
	}
	return in, nil
}

func invalid(err error) error {
	return apperrors.Kind(apperrors.ErrInvalidQuery, err)
}

func hasWrapper(s, name string) bool {
	return strings.HasPrefix(s, name+"(") && strings.HasSuffix(s, ")")
}

func unwrap(s, name string) string {
	return strings.TrimSpace(s[len(name)+1 : len(s)-1])
}

// parseCollection consumes "db.<name>" or "db.getCollection(<string>)" and
// returns the collection and the remaining chain.
func parseCollection(s string) (string, string, error) {
	if !strings.HasPrefix(s, "db.") {
		return "", "", fmt.Errorf("query must start with db.")
	}
	s = s[len("db."):]

	if strings.HasPrefix(s, "getCollection") {
		args, rest, err := splitCall(s[len("getCollection"):])
		if err != nil {
			return "", "", err
		}
		if len(args) != 1 {
			return "", "", fmt.Errorf("getCollection takes one argument")
		}
		v, err := decodeValue(args[0])
		if err != nil {
			return "", "", err
		}
		name, ok := v.(string)
		if !ok || name == "" {
			return "", "", fmt.Errorf("getCollection requires a collection name")
		}
		return name, rest, nil
	}

	end := 0
	for end < len(s) && (isIdentStart(s[end]) || isDigit(s[end]) || s[end] == '-') {
		end++
	}
	if end == 0 {
		return "", "", fmt.Errorf("missing collection name")
	}
	return s[:end], s[end:], nil
}

// parseCalls splits ".a(x).b(y)" into calls.
func parseCalls(s string) ([]call, error) {
	var calls []call
	for {
		s = strings.TrimSpace(s)
		if s == "" {
			return calls, nil
		}
		if s[0] != '.' {
			return nil, fmt.Errorf("unexpected text %q", s)
		}
		s = strings.TrimSpace(s[1:])
		end := 0
		for end < len(s) && (isIdentStart(s[end]) || end > 0 && isDigit(s[end])) {
			end++
		}
		if end == 0 {
			return nil, fmt.Errorf("missing method name")
		}
		name := s[:end]
		args, rest, err := splitCall(s[end:])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		calls = append(calls, call{name: name, args: args})
		s = rest
	}
}

// splitCall reads a parenthesized argument list and splits it on top-level
// commas. Strings and /regex/ literals are skipped while matching brackets.
func splitCall(s string) ([]string, string, error) {
	s = strings.TrimLeft(s, " \t\r\n")
	if s == "" || s[0] != '(' {
		return nil, "", fmt.Errorf("expected argument list")
	}

	var args []string
	depth := 0
	start := 1
	var last byte = '('
	for i := 1; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			continue
		}
		prev := last
		last = c
		switch c {
		case '"', '\'':
			_, next, err := readString(s, i)
			if err != nil {
				return nil, "", err
			}
			i = next - 1
		case '/':
			if prev == ':' || prev == ',' || prev == '[' || prev == '(' {
				_, next, err := readRegex(s, i)
				if err != nil {
					return nil, "", err
				}
				i = next - 1
			}
		case '(', '{', '[':
			depth++
		case '}', ']':
			depth--
		case ')':
			if depth == 0 {
				if arg := strings.TrimSpace(s[start:i]); arg != "" || len(args) > 0 {
					args = append(args, arg)
				}
				return args, s[i+1:], nil
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return nil, "", fmt.Errorf("unbalanced parentheses")
}

func (in *Intent) applyOp(c call) error {
	var err error
	switch c.name {
	case "find", "findOne":
		if len(c.args) > 2 {
			return fmt.Errorf("%s takes at most two arguments", c.name)
		}
		in.Op = OpFind
		if c.name == "findOne" {
			in.Op = OpFindOne
		}
		if in.Filter, err = docArg(c.args, 0); err != nil {
			return err
		}
		if in.Projection, err = docArg(c.args, 1); err != nil {
			return err
		}
	case "countDocuments", "count", "estimatedDocumentCount":
		if len(c.args) > 1 {
			return fmt.Errorf("%s takes at most one argument", c.name)
		}
		in.Op = OpCount
		if in.Filter, err = docArg(c.args, 0); err != nil {
			return err
		}
	case "distinct":
		if len(c.args) < 1 || len(c.args) > 2 {
			return fmt.Errorf("distinct takes a field and an optional filter")
		}
		v, err := decodeValue(c.args[0])
		if err != nil {
			return err
		}
		field, ok := v.(string)
		if !ok || field == "" || strings.HasPrefix(field, "$") {
			return fmt.Errorf("distinct requires a field name")
		}
		in.Op = OpDistinct
		in.Field = field
		if in.Filter, err = docArg(c.args, 1); err != nil {
			return err
		}
	case "aggregate":
		if len(c.args) == 0 {
			return fmt.Errorf("aggregate requires a pipeline")
		}
		in.Op = OpAggregate
		if in.Pipeline, err = pipelineArg(c.args); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported operation %q", c.name)
	}
	return nil
}

func (in *Intent) applyModifier(c call) error {
	switch c.name {
	case "toArray", "pretty":
		return nil
	}
	if in.Op != OpFind {
		return fmt.Errorf("%s cannot follow %s", c.name, in.Op)
	}

	var err error
	switch c.name {
	case "sort":
		in.Sort, err = docArg(c.args, 0)
	case "limit":
		in.Limit, err = intArg(c.args)
	case "skip":
		in.Skip, err = intArg(c.args)
	case "projection":
		in.Projection, err = docArg(c.args, 0)
	case "count", "size", "itcount":
		in.Op = OpCount
	default:
		err = fmt.Errorf("unsupported cursor method %q", c.name)
	}
	return err
}

func docArg(args []string, i int) (bson.D, error) {
	if i >= len(args) {
		return bson.D{}, nil
	}
	return decodeDocument(args[i])
}

func intArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one integer argument")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", args[0])
	}
	return n, nil
}

// pipelineArg accepts either aggregate([s1, s2]) or aggregate(s1, s2).
func pipelineArg(args []string) ([]bson.D, error) {
	var stages []interface{}
	if len(args) == 1 {
		v, err := decodeValue(args[0])
		if err != nil {
			return nil, err
		}
		if arr, ok := v.(bson.A); ok {
			stages = arr
		} else {
			stages = []interface{}{v}
		}
	} else {
		for _, a := range args {
			v, err := decodeValue(a)
			if err != nil {
				return nil, err
			}
			stages = append(stages, v)
		}
	}

	pipeline := make([]bson.D, 0, len(stages))
	for i, s := range stages {
		doc, ok := asDocument(s)
		if !ok || len(doc) != 1 {
			return nil, fmt.Errorf("pipeline stage %d must be a single-key object", i)
		}
		pipeline = append(pipeline, doc)
	}
	return pipeline, nil
}

// check enforces the stage allow-list and rejects forbidden operators at any depth.
func (in *Intent) check() error {
	if err := checkStages(in.Pipeline); err != nil {
		return err
	}
	for _, part := range []interface{}{in.Filter, in.Projection, in.Sort, toA(in.Pipeline)} {
		if op := findForbidden(part); op != "" {
			return fmt.Errorf("operator %s is not allowed", op)
		}
	}
	return nil
}

// checkStages validates stage names, including $lookup sub-pipelines.
func checkStages(pipeline []bson.D) error {
	for _, stage := range pipeline {
		name := stage[0].Key
		if !AllowedStages[name] {
			return fmt.Errorf("aggregation stage %s is not allowed", name)
		}
		if name != "$lookup" {
			continue
		}
		spec, ok := asDocument(stage[0].Value)
		if !ok {
			return fmt.Errorf("$lookup requires an object")
		}
		for _, e := range spec {
			if e.Key != "pipeline" {
				continue
			}
			arr, ok := e.Value.(bson.A)
			if !ok {
				return fmt.Errorf("$lookup pipeline must be an array")
			}
			sub := make([]bson.D, 0, len(arr))
			for _, s := range arr {
				doc, ok := asDocument(s)
				if !ok || len(doc) != 1 {
					return fmt.Errorf("$lookup pipeline stages must be single-key objects")
				}
				sub = append(sub, doc)
			}
			if err := checkStages(sub); err != nil {
				return err
			}
		}
	}
	return nil
}

func toA(p []bson.D) bson.A {
	a := make(bson.A, len(p))
	for i, d := range p {
		a[i] = d
	}
	return a
}

// findForbidden returns the first forbidden operator key found in v.
func findForbidden(v interface{}) string {
	switch t := v.(type) {
	case bson.D:
		for _, e := range t {
			if ForbiddenOperators[e.Key] {
				return e.Key
			}
			if op := findForbidden(e.Value); op != "" {
				return op
			}
		}
	case bson.M:
		for k, val := range t {
			if ForbiddenOperators[k] {
				return k
			}
			if op := findForbidden(val); op != "" {
				return op
			}
		}
	case bson.A:
		for _, val := range t {
			if op := findForbidden(val); op != "" {
				return op
			}
		}
	}
	return ""
}
