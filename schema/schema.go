// Package schema infers a flat field catalog from one sampled document per
// collection. The catalog grounds query synthesis prompts.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ReferenceType is the type recorded for ObjectId fields.
const ReferenceType = "ObjectId"

// DefaultFieldCap is the per-collection descriptor limit.
const DefaultFieldCap = 20

// Store is the subset of the document store the inferencer reads.
type Store interface {
	ListCollections(ctx context.Context) ([]string, error)
	FindOne(ctx context.Context, collection string, filter bson.D) (bson.D, error)
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) ([]bson.D, error)
}

// Field describes one dotted path of a sampled document.
type Field struct {
	Name string
	Type string
	// References names the collection an ObjectId field points into, or ""
	// when no collection carries a field of the same name.
	References string
}

func (f Field) IsReference() bool { return f.Type == ReferenceType }

// MarshalJSON always emits "references" for reference fields, as null when
// the target is unknown, and omits it otherwise.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.IsReference() {
		return json.Marshal(struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}{f.Name, f.Type})
	}
	var ref *string
	if f.References != "" {
		ref = &f.References
	}
	return json.Marshal(struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		References *string `json:"references"`
	}{f.Name, f.Type, ref})
}

// Catalog maps collection names to their field descriptors, in listing order.
type Catalog struct {
	Collections []string
	Fields      map[string][]Field
}

func newCatalog() *Catalog {
	return &Catalog{Fields: make(map[string][]Field)}
}

func (c *Catalog) add(collection string, fields []Field) {
	c.Collections = append(c.Collections, collection)
	c.Fields[collection] = fields
}

// JSON renders the catalog as indented JSON with collections in listing order.
func (c *Catalog) JSON() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, name := range c.Collections {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(name)
		if err != nil {
			return "", err
		}
		fields := c.Fields[name]
		if fields == nil {
			fields = []Field{}
		}
		val, err := json.MarshalIndent(fields, "  ", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&buf, "\n  %s: %s", key, val)
	}
	if len(c.Collections) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String(), nil
}

// Truncated renders the catalog and cuts it to at most budget characters.
// The cut may land mid-structure.
func (c *Catalog) Truncated(budget int) (string, error) {
	s, err := c.JSON()
	if err != nil {
		return "", err
	}
	if budget > 0 {
		if r := []rune(s); len(r) > budget {
			s = string(r[:budget])
		}
	}
	return s, nil
}

// Inferencer builds a Catalog by sampling the store.
type Inferencer struct {
	store    Store
	fieldCap int
	expand   string
	logger   *zap.Logger
}

// NewInferencer creates an inferencer. expandCollection names the collection
// whose sample is joined with its fleet and driver documents.
func NewInferencer(store Store, fieldCap int, expandCollection string, logger *zap.Logger) *Inferencer {
	if fieldCap <= 0 {
		fieldCap = DefaultFieldCap
	}
	return &Inferencer{store: store, fieldCap: fieldCap, expand: expandCollection, logger: logger}
}

// expandPipeline samples one trip and joins its fleet and driver.
func expandPipeline() []bson.D {
	return []bson.D{
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "fleets"},
			{Key: "localField", Value: "genericdata.fleet"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "fleet_info"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "genericdata.driver"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "driver_info"},
		}}},
	}
}

// Build samples every collection and returns the catalog. Empty collections
// produce no entry.
func (in *Inferencer) Build(ctx context.Context) (*Catalog, error) {
	collections, err := in.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	catalog := newCatalog()
	for _, name := range collections {
		sample, err := in.sample(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(sample) == 0 {
			in.logger.Debug("Skipping empty collection", zap.String("collection", name))
			continue
		}

		w := &walk{fieldCap: in.fieldCap}
		for _, e := range sample {
			if err := in.visit(ctx, collections, "", e.Key, e.Value, w); err != nil {
				return nil, err
			}
		}
		catalog.add(name, w.fields)
	}
	return catalog, nil
}

func (in *Inferencer) sample(ctx context.Context, collection string) (bson.D, error) {
	if collection == in.expand {
		docs, err := in.store.Aggregate(ctx, collection, expandPipeline())
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", collection, err)
		}
		if len(docs) == 0 {
			return nil, nil
		}
		return docs[0], nil
	}
	doc, err := in.store.FindOne(ctx, collection, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", collection, err)
	}
	return doc, nil
}

// walk accumulates descriptors for one collection. The count is shared by
// every branch of the recursion.
type walk struct {
	fields   []Field
	fieldCap int
}

func (w *walk) full() bool { return len(w.fields) >= w.fieldCap }

func (in *Inferencer) visit(ctx context.Context, collections []string, parent, key string, raw interface{}, w *walk) error {
	if w.full() {
		return nil
	}
	path := key
	if parent != "" {
		path = parent + "." + key
	}

	v := Classify(raw)
	switch v.Kind {
	case KindReference:
		ref, err := in.referencedCollection(ctx, collections, key)
		if err != nil {
			return err
		}
		w.fields = append(w.fields, Field{Name: path, Type: ReferenceType, References: ref})
	case KindObject:
		for _, e := range v.Fields {
			if err := in.visit(ctx, collections, path, e.Key, e.Value, w); err != nil {
				return err
			}
		}
	default:
		if first, ok := v.firstObject(); ok {
			for _, e := range first {
				if err := in.visit(ctx, collections, path, e.Key, e.Value, w); err != nil {
					return err
				}
			}
			return nil
		}
		w.fields = append(w.fields, Field{Name: path, Type: v.TypeName})
	}
	return nil
}

// referencedCollection returns the first collection holding a document with
// the bare field name, or "" if none does.
func (in *Inferencer) referencedCollection(ctx context.Context, collections []string, field string) (string, error) {
	filter := bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: true}}}}
	for _, name := range collections {
		doc, err := in.store.FindOne(ctx, name, filter)
		if err != nil {
			return "", fmt.Errorf("resolve reference %s in %s: %w", field, name, err)
		}
		if doc != nil {
			return name, nil
		}
	}
	return "", nil
}
