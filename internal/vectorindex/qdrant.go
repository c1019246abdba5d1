package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements Index with one Qdrant collection per namespace.
// Collections are created lazily with the embedding model's dimensionality;
// an existing collection with a different vector size is a hard error, since
// upserts against it could never succeed.
type QdrantIndex struct {
	client     *qdrant.Client
	prefix     string
	vectorSize int
}

func NewQdrantIndex(client *qdrant.Client, prefix string, vectorSize int) *QdrantIndex {
	return &QdrantIndex{
		client:     client,
		prefix:     prefix,
		vectorSize: vectorSize,
	}
}

func (q *QdrantIndex) collection(namespace string) string {
	return q.prefix + namespace
}

func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	collection := q.collection(namespace)
	if err := q.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		point := &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Vector...),
		}
		if len(doc.Meta) > 0 {
			point.Payload = qdrant.NewValueMap(doc.Meta)
		}
		points = append(points, point)
	}

	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert points failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	collection := q.collection(namespace)

	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection failed: %w", err)
	}
	if !exists {
		// Nothing ingested into this namespace yet.
		return nil, nil
	}

	limit := uint64(k)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points failed: %w", err)
	}

	matches := make([]Match, 0, len(scored))
	for _, point := range scored {
		match := Match{Score: point.Score, Meta: map[string]any{}}
		if point.Payload != nil {
			match.Meta = payloadToMap(point.Payload)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (q *QdrantIndex) DropNamespace(ctx context.Context, namespace string) error {
	collection := q.collection(namespace)
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection failed: %w", err)
	}
	if !exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("delete collection failed: %w", err)
	}
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection failed: %w", err)
	}
	if !exists {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("create collection failed: %w", err)
		}
		return nil
	}

	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("get collection info failed: %w", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection %s has no vector params", collection)
	}
	if int(params.Size) != q.vectorSize {
		return fmt.Errorf("collection %s vector size %d does not match embedding size %d",
			collection, params.Size, q.vectorSize)
	}
	return nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if v == nil {
			continue
		}
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch val := v.Kind.(type) {
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_ListValue:
		list := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = valueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		return payloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
