package grpc

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mr1hm/go-saferoute/internal/models"
)

// SnapshotSource looks up the current snapshot of a session.
type SnapshotSource interface {
	Snapshot(sessionID string) (*models.Snapshot, bool)
}

type Server struct {
	sessions    SnapshotSource
	broadcaster *Broadcaster
	grpcServer  *grpc.Server
}

func NewServer(sessions SnapshotSource, broadcaster *Broadcaster) *Server {
	s := &Server{
		sessions:    sessions,
		broadcaster: broadcaster,
	}
	s.grpcServer = grpc.NewServer(grpc.ForceServerCodec(jsonCodec{}))
	s.grpcServer.RegisterService(&ServiceDesc, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func (s *Server) GetSnapshot(ctx context.Context, req *GetSnapshotRequest) (*models.Snapshot, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	snap, ok := s.sessions.Snapshot(req.SessionID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session not found: %s", req.SessionID)
	}
	return snap, nil
}

func (s *Server) StreamSnapshots(req *StreamSnapshotsRequest, stream SnapshotStream) error {
	if req.SessionID == "" {
		return status.Error(codes.InvalidArgument, "session_id is required")
	}

	// Subscribe before reading the current snapshot so nothing published in
	// between is lost. Generations let us drop the duplicates.
	id, ch := s.broadcaster.Subscribe(req.SessionID)
	defer s.broadcaster.Unsubscribe(id)

	current, ok := s.sessions.Snapshot(req.SessionID)
	if !ok {
		return status.Errorf(codes.NotFound, "session not found: %s", req.SessionID)
	}

	slog.Info("client subscribed to snapshot stream", "subscriber_id", id, "session_id", req.SessionID)

	if !req.SkipCurrent {
		if err := stream.Send(current); err != nil {
			return err
		}
	}
	lastGen, lastState := current.Generation, current.State

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from snapshot stream", "subscriber_id", id)
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if !snap.Follows(lastGen, lastState) {
				continue
			}
			lastGen, lastState = snap.Generation, snap.State

			if err := stream.Send(snap); err != nil {
				slog.Error("failed to send snapshot to stream", "error", err, "subscriber_id", id)
				return err
			}
		}
	}
}
