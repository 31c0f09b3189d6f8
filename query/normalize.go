package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"fleetwise/web/types"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Normalize converts a result into plain rows: a count becomes [{count: N}],
// and inside documents ObjectIDs become hex strings and datetimes ISO-8601
// text. Documents stay documents and arrays stay arrays.
func Normalize(res *Result) []bson.D {
	if res == nil {
		return []bson.D{}
	}
	if res.Scalar {
		return []bson.D{{{Key: "count", Value: res.Count}}}
	}
	rows := make([]bson.D, 0, len(res.Docs))
	for _, doc := range res.Docs {
		rows = append(rows, normalizeDoc(doc))
	}
	return rows
}

func normalizeDoc(d bson.D) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		out = append(out, bson.E{Key: e.Key, Value: NormalizeValue(e.Value)})
	}
	return out
}

// NormalizeValue converts a single BSON value, recursing into documents and arrays.
func NormalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		return normalizeDoc(t)
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = NormalizeValue(val)
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = NormalizeValue(val)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// RowsJSON renders normalized rows as an indented JSON array, keeping field order.
func RowsJSON(rows []bson.D) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := bson.MarshalExtJSON(row, false, false)
		if err != nil {
			return "", fmt.Errorf("encode row %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ToTable builds a tabular view. Columns are the union of top-level keys in
// first-seen order; nested values are rendered as compact JSON.
func ToTable(rows []bson.D) types.Table {
	table := types.Table{Columns: []string{}, Rows: [][]any{}}
	index := map[string]int{}
	for _, row := range rows {
		for _, e := range row {
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(table.Columns)
				table.Columns = append(table.Columns, e.Key)
			}
		}
	}
	for _, row := range rows {
		cells := make([]any, len(table.Columns))
		for _, e := range row {
			cells[index[e.Key]] = cellValue(e.Value)
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func cellValue(v interface{}) any {
	switch t := v.(type) {
	case bson.D, bson.M:
		if b, err := bson.MarshalExtJSON(t, false, false); err == nil {
			return string(b)
		}
	case bson.A:
		if b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: t}}, false, false); err == nil {
			return string(bytes.TrimSuffix(bytes.TrimPrefix(b, []byte(`{"v":`)), []byte("}")))
		}
	case primitive.Decimal128:
		return t.String()
	}
	return v
}
