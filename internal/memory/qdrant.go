package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore implements Store on a Qdrant collection over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

// NewQdrantStore connects to the Qdrant gRPC endpoint at addr (host:6334).
// The connection is established lazily on the first call.
func NewQdrantStore(addr, collection string, dimension int) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
	}, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert stores one point. Qdrant only accepts UUID or integer ids, so the
// memory id is mapped to a name-based UUID and kept in the payload.
func (s *QdrantStore) Upsert(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	values := toQdrantPayload(payload)
	values["memory_id"] = stringValue(id)

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointUUID(id)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: values,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// Search runs a nearest-neighbour query with a server-side score threshold.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int, threshold float32) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]Result, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		results = append(results, Result{
			ID:      resultID(r.GetId(), r.GetPayload()),
			Score:   r.GetScore(),
			Payload: fromQdrantPayload(r.GetPayload()),
		})
	}
	return results, nil
}

// SearchText scrolls points whose content matches query. Without a full-text
// index on "content" Qdrant treats the match as a plain substring test.
func (s *QdrantStore) SearchText(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	n := uint32(limit)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Filter: &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{
						Key:   payloadContent,
						Match: &pb.Match{MatchValue: &pb.Match_Text{Text: query}},
					},
				},
			}},
		},
		Limit:       &n,
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("scroll points: %w", err)
	}

	results := make([]Result, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		results = append(results, Result{
			ID:      resultID(p.GetId(), p.GetPayload()),
			Payload: fromQdrantPayload(p.GetPayload()),
		})
	}
	return results, nil
}

func pointUUID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func resultID(id *pb.PointId, payload map[string]*pb.Value) string {
	if v, ok := payload["memory_id"]; ok && v.GetStringValue() != "" {
		return v.GetStringValue()
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

// toQdrantPayload flattens a payload. Metadata maps are stored as a JSON
// string so arbitrary nesting survives the round trip.
func toQdrantPayload(payload map[string]any) map[string]*pb.Value {
	out := make(map[string]*pb.Value, len(payload)+1)
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			out[k] = stringValue(val)
		case int:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(val)}}
		case int64:
			out[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: val}}
		case float64:
			out[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: val}}
		case bool:
			out[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: val}}
		case nil:
		default:
			if data, err := json.Marshal(val); err == nil {
				out[k] = stringValue(string(data))
			}
		}
	}
	return out
}

func fromQdrantPayload(values map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			out[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	if raw, ok := out[payloadMetadata].(string); ok {
		var meta map[string]any
		if json.Unmarshal([]byte(raw), &meta) == nil {
			out[payloadMetadata] = meta
		}
	}
	delete(out, "memory_id")
	return out
}
