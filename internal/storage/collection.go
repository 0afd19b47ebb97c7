package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection is a typed view over one Firestore collection.
type Collection[T any] struct {
	ref  *firestore.CollectionRef
	name string
}

func newCollection[T any](client *firestore.Client, name string) *Collection[T] {
	return &Collection[T]{ref: client.Collection(name), name: name}
}

// Save writes v under id, replacing any existing document.
func (c *Collection[T]) Save(ctx context.Context, id string, v T) error {
	if _, err := c.ref.Doc(id).Set(ctx, v); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Get returns the document with the given id, or nil if it does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.ref.Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", c.name, id, err)
	}
	if !doc.Exists() {
		return nil, nil
	}

	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s/%s: %w", c.name, id, err)
	}
	return &v, nil
}

// Query returns every document where field op value holds.
func (c *Collection[T]) Query(ctx context.Context, field, op string, value any) ([]T, error) {
	return c.collect(c.ref.Where(field, op, value).Documents(ctx))
}

// GetAll returns every document of the collection.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	return c.collect(c.ref.Documents(ctx))
}

// Update applies a partial update. A missing document is reported as an
// error with code NotFound.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	if _, err := c.ref.Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Delete removes the document with the given id. Deleting a missing
// document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.ref.Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.name, id, err)
	}
	return nil
}

// Count returns the number of documents where field == value.
func (c *Collection[T]) Count(ctx context.Context, field string, value any) (int, error) {
	q := c.ref.Where(field, "==", value)
	result, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, err)
	}
	raw, ok := result["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation result for %s was invalid: 'all' key missing", c.name)
	}
	n, err := countValue(raw)
	if err != nil {
		return 0, fmt.Errorf("count aggregation result for %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *Collection[T]) collect(iter *firestore.DocumentIterator) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", c.name, err)
		}
		var v T
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s/%s: %w", c.name, doc.Ref.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// countValue unwraps an aggregation result, which the client returns either
// as a plain int64 or as a protobuf value depending on version.
func countValue(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
