package grpcserver

import (
	"context"
	"log"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"chute/service"
)

// Server adapts Pipeline to gRPC. The surface carries diagnostics
// and maintenance commands only, so requests and responses are
// protobuf well-known types and the service descriptor is declared
// by hand instead of generated.
type Server struct {
	svc *service.Pipeline
}

func NewServer(svc *service.Pipeline) *Server {
	return &Server{svc: svc}
}

// -------------------- Queries --------------------

func (s *Server) Stats(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	st := s.svc.Stats()

	return structpb.NewStruct(map[string]interface{}{
		"queue_depth":    st.QueueDepth,
		"segments":       st.Segments,
		"pool_available": st.PoolAvailable,
		"ingested":       st.Ingested,
		"drained":        st.Drained,
		"spilled":        st.Spilled,
		"replayed":       st.Replayed,
		"dropped":        st.Dropped,
	})
}

// -------------------- Commands --------------------

func (s *Server) ReplaySpill(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	n, err := s.svc.ReplaySpill(ctx)
	if err != nil {
		log.Printf("[gRPC] ReplaySpill stopped after %d: %v", n, err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"replayed": n,
		"complete": err == nil,
	})
}

// Flush drains queued frames to the sink until the queue is observed
// empty or the drain fails.
func (s *Server) Flush(
	ctx context.Context,
	_ *emptypb.Empty,
) (*structpb.Struct, error) {
	const batch = 256

	total := 0
	for {
		n, err := s.svc.Drain(ctx, batch)
		total += n
		if err != nil {
			log.Printf("[gRPC] Flush stopped after %d: %v", total, err)
			return structpb.NewStruct(map[string]interface{}{
				"drained":  total,
				"complete": false,
			})
		}
		if n < batch {
			break
		}
	}
	return structpb.NewStruct(map[string]interface{}{
		"drained":  total,
		"complete": true,
	})
}
