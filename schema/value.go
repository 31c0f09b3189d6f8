package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind tags a sampled document value.
type Kind int

const (
	KindPrimitive Kind = iota
	KindReference
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindReference:
		return "reference"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "primitive"
	}
}

// Value is a sampled field value classified for the schema walk. Only the
// members matching Kind are set.
type Value struct {
	Kind     Kind
	TypeName string
	Fields   bson.D
	Elements bson.A
}

// Classify tags a decoded BSON value.
func Classify(v interface{}) Value {
	switch t := v.(type) {
	case primitive.ObjectID:
		return Value{Kind: KindReference, TypeName: ReferenceType}
	case bson.D:
		return Value{Kind: KindObject, TypeName: "object", Fields: t}
	case bson.M:
		return Value{Kind: KindObject, TypeName: "object", Fields: mapToD(t)}
	case bson.A:
		return Value{Kind: KindArray, TypeName: "array", Elements: t}
	case []interface{}:
		return Value{Kind: KindArray, TypeName: "array", Elements: bson.A(t)}
	default:
		return Value{Kind: KindPrimitive, TypeName: TypeName(v)}
	}
}

// TypeName returns the kind name recorded for a primitive value.
func TypeName(v interface{}) string {
	switch v.(type) {
	case nil, primitive.Null:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32:
		return "int32"
	case int, int64:
		return "int64"
	case float32, float64:
		return "double"
	case primitive.DateTime:
		return "datetime"
	case primitive.Timestamp:
		return "timestamp"
	case primitive.Decimal128:
		return "decimal"
	case primitive.Binary:
		return "binary"
	case primitive.Regex:
		return "regex"
	case bson.A, []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// firstObject returns the first element of a non-empty array when that element
// is an embedded document.
func (v Value) firstObject() (bson.D, bool) {
	if v.Kind != KindArray || len(v.Elements) == 0 {
		return nil, false
	}
	first := Classify(v.Elements[0])
	if first.Kind != KindObject {
		return nil, false
	}
	return first.Fields, true
}

func mapToD(m bson.M) bson.D {
	d := make(bson.D, 0, len(m))
	for k, v := range m {
		d = append(d, bson.E{Key: k, Value: v})
	}
	return d
}
