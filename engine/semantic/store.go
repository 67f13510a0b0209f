// Package semantic owns every Qdrant operation: storing document chunks,
// scrolling a document's chunks back in order and nearest-neighbour queries
// restricted to one document.
package semantic

import (
	"context"
	"fmt"
	"sort"

	"github.com/WessleyAI/career-agent/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const scrollPage = 256

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the chunk store backed by a Qdrant collection.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore for the Qdrant gRPC endpoint at addr.
func New(addr, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a store over existing service clients.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist. Vectors are
// compared by Euclidean distance so Nearest can report raw distances.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores raw records.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}}},
			Payload: toPayload(r.Payload),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// PutChunks stores a document's embedded chunks.
func (v *VectorStore) PutChunks(ctx context.Context, docID string, t domain.DocType, chunks []domain.Chunk) error {
	return v.Upsert(ctx, ChunkRecords(docID, t, chunks))
}

// DeleteDoc removes every point of (docID, t). Used before re-ingestion.
func (v *VectorStore) DeleteDoc(ctx context.Context, docID string, t domain.DocType) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: docFilter(docID, t)},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %s %s: %w", t, docID, err)
	}
	return nil
}

// Chunks returns every chunk of (docID, t) with its embedding, ordered by
// chunk index. A document that was never ingested yields no chunks.
func (v *VectorStore) Chunks(ctx context.Context, docID string, t domain.DocType) ([]domain.Chunk, error) {
	var (
		out    []domain.Chunk
		offset *pb.PointId
	)
	limit := uint32(scrollPage)
	for {
		resp, err := v.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: v.collection,
			Filter:         docFilter(docID, t),
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("semantic: scroll %s %s: %w", t, docID, err)
		}
		for _, p := range resp.GetResult() {
			c := chunkFromPayload(p.GetPayload())
			c.Embedding = p.GetVectors().GetVector().GetDense().GetData()
			out = append(out, c)
		}
		offset = resp.GetNextPageOffset()
		if offset == nil || len(resp.GetResult()) == 0 {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Nearest returns up to k chunks of (docID, t) closest to embedding,
// nearest first, with their Euclidean distance.
func (v *VectorStore) Nearest(ctx context.Context, embedding []float32, docID string, t domain.DocType, k int) ([]domain.Neighbor, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		Filter:         docFilter(docID, t),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s %s: %w", t, docID, err)
	}

	out := make([]domain.Neighbor, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		c := chunkFromPayload(r.GetPayload())
		out[i] = domain.Neighbor{
			Index:    c.Index,
			Text:     c.Text,
			Preview:  c.Preview,
			Distance: float64(r.GetScore()),
		}
	}
	return out, nil
}

func chunkFromPayload(payload map[string]*pb.Value) domain.Chunk {
	return domain.Chunk{
		Index:   int(payload[keyIndex].GetIntegerValue()),
		Text:    payload[keyContent].GetStringValue(),
		Preview: payload[keyPreview].GetStringValue(),
	}
}

func toPayload(in map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(in))
	for k, val := range in {
		switch tv := val.(type) {
		case string:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
		}
	}
	return payload
}

// docFilter restricts a query to one document of one type. Both conditions
// are always present.
func docFilter(docID string, t domain.DocType) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{
		fieldMatch(keyDocID, docID),
		fieldMatch(keyType, string(t)),
	}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
