package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/memochater/core/internal/kind"
)

// payloadIDField stores the original (possibly non-UUID) id when Qdrant's
// UUID-or-positive-integer point id requirement forces a deterministic UUID
// substitute. Grounded on a reference qdrant_vector.go PAYLOAD_ID_FIELD.
const payloadIDField = "_original_id"

// QdrantStore is a Store backed by github.com/qdrant/go-client, with
// typed Payload values and
// Must/MustNot/Should Filter shape required by , and adds Scroll, Count,
// UpdatePayload, DropCollection, and batch operations a reference minimal
// interface lacked.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	distance   Distance
}

// NewQdrantStore dials host:port (the gRPC port, 6334 by default upstream)
// and ensures the collection exists with the given dimension/distance.
func NewQdrantStore(ctx context.Context, host string, port int, apiKey string, useTLS bool, cfg CollectionConfig) (*QdrantStore, error) {
	if cfg.Name == "" {
		return nil, kind.New(kind.Config, "NewQdrantStore", fmt.Errorf("collection name is required"))
	}
	qcfg := &qdrant.Config{Host: host, Port: port, UseTLS: useTLS}
	if apiKey != "" {
		qcfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, kind.New(kind.Connection, "NewQdrantStore", err)
	}
	q := &QdrantStore{client: client, collection: cfg.Name, dimension: cfg.Dimension, distance: cfg.Distance}
	if err := q.Ensure(ctx, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func toQdrantDistance(d Distance) qdrant.Distance {
	switch d {
	case Euclidean:
		return qdrant.Distance_Euclid
	case Dot:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

func (q *QdrantStore) Ensure(ctx context.Context, cfg CollectionConfig) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return kind.New(kind.Connection, "Ensure", err)
	}
	if exists {
		return nil // idempotent
	}
	if cfg.Dimension <= 0 {
		return kind.New(kind.Config, "Ensure", fmt.Errorf("dimension must be > 0"))
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(cfg.Dimension),
			Distance: toQdrantDistance(cfg.Distance),
		}),
	})
	if err != nil {
		return kind.New(kind.Connection, "Ensure", err)
	}
	return nil
}

// pointUUID derives a deterministic UUID for non-UUID ids, preserving the
// original id in the payload.
func pointUUID(id string) (uuidStr string, original string) {
	if _, err := uuid.Parse(id); err == nil {
		return id, ""
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), id
}

func payloadToValueMap(p Payload, original string) map[string]any {
	m := make(map[string]any, len(p)+1)
	for k, v := range p {
		m[k] = v
	}
	if original != "" {
		m[payloadIDField] = original
	}
	return m
}

func (q *QdrantStore) Upsert(ctx context.Context, p Point) error {
	return q.UpsertBatch(ctx, []Point{p})
}

func (q *QdrantStore) UpsertBatch(ctx context.Context, ps []Point) error {
	points := make([]*qdrant.PointStruct, 0, len(ps))
	for _, p := range ps {
		uuidStr, original := pointUUID(p.ID)
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payloadToValueMap(p.Payload, original)),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	if err != nil {
		return kind.New(kind.Point, "UpsertBatch", err)
	}
	return nil
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	qf := &qdrant.Filter{}
	for _, c := range f.Must {
		qf.Must = append(qf.Must, conditionToQdrant(c))
	}
	for _, c := range f.MustNot {
		qf.MustNot = append(qf.MustNot, conditionToQdrant(c))
	}
	for _, c := range f.Should {
		qf.Should = append(qf.Should, conditionToQdrant(c))
	}
	return qf
}

func conditionToQdrant(c Condition) *qdrant.Condition {
	switch c.Op {
	case OpGte, OpLte, OpGt, OpLt:
		r := &qdrant.Range{}
		if f, ok := toFloat(c.Value); ok {
			switch c.Op {
			case OpGte:
				r.Gte = &f
			case OpLte:
				r.Lte = &f
			case OpGt:
				r.Gt = &f
			case OpLt:
				r.Lt = &f
			}
		}
		return qdrant.NewRange(c.Field, r)
	default:
		switch v := c.Value.(type) {
		case string:
			return qdrant.NewMatch(c.Field, v)
		case bool:
			return qdrant.NewMatchBool(c.Field, v)
		default:
			if f, ok := toFloat(v); ok {
				return qdrant.NewMatchInt(c.Field, int64(f))
			}
			return qdrant.NewMatch(c.Field, fmt.Sprintf("%v", v))
		}
	}
}

func resultFromHitPayload(id string, score float64, payload map[string]*qdrant.Value) Result {
	out := Payload{}
	originalID := ""
	for k, v := range payload {
		if k == payloadIDField {
			originalID = v.GetStringValue()
			continue
		}
		out[k] = qdrantValueToScalar(v)
	}
	if originalID != "" {
		id = originalID
	}
	return Result{ID: id, Score: score, Payload: out}
}

func qdrantValueToScalar(v *qdrant.Value) Scalar {
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetListValue() != nil:
		var out []Scalar
		for _, lv := range v.GetListValue().GetValues() {
			out = append(out, qdrantValueToScalar(lv))
		}
		return out
	default:
		return v.GetDoubleValue()
	}
}

func (q *QdrantStore) Search(ctx context.Context, query []float32, k int, filter *Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(query))
	copy(vec, query)
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, kind.New(kind.Search, "Search", err)
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		id := h.Id.GetUuid()
		if id == "" {
			id = h.Id.String()
		}
		out = append(out, resultFromHitPayload(id, float64(h.Score), h.Payload))
	}
	return out, nil
}

func (q *QdrantStore) Scroll(ctx context.Context, limit int, filter *Filter) ([]Result, error) {
	l := uint32(limit)
	if l == 0 {
		l = 100
	}
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         toQdrantFilter(filter),
		Limit:          &l,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, kind.New(kind.Search, "Scroll", err)
	}
	out := make([]Result, 0, len(points))
	for _, p := range points {
		id := p.Id.GetUuid()
		if id == "" {
			id = p.Id.String()
		}
		out = append(out, resultFromHitPayload(id, 1.0, p.Payload))
	}
	return out, nil
}

func (q *QdrantStore) UpdatePayload(ctx context.Context, id string, partial Payload) error {
	uuidStr, original := pointUUID(id)
	_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: q.collection,
		Payload:        qdrant.NewValueMap(payloadToValueMap(partial, original)),
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	if err != nil {
		return kind.New(kind.Point, "UpdatePayload", err)
	}
	return nil
}

func (q *QdrantStore) Delete(ctx context.Context, id string) error {
	return q.DeleteBatch(ctx, []string{id})
}

func (q *QdrantStore) DeleteBatch(ctx context.Context, ids []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		uuidStr, _ := pointUUID(id)
		pointIDs = append(pointIDs, qdrant.NewIDUUID(uuidStr))
	}
	selector := &qdrant.PointsSelector{
		PointsSelectorOneOf: &qdrant.PointsSelector_Points{
			Points: &qdrant.PointsIdsList{Ids: pointIDs},
		},
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         selector,
	})
	if err != nil {
		return kind.New(kind.Point, "DeleteBatch", err)
	}
	return nil
}

func (q *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: q.collection})
	if err != nil {
		return 0, kind.New(kind.Collection, "Count", err)
	}
	return int(n), nil
}

func (q *QdrantStore) DropCollection(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return kind.New(kind.Collection, "DropCollection", err)
	}
	return nil
}

func (q *QdrantStore) Close() error { return q.client.Close() }
