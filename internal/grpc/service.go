package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mr1hm/go-saferoute/internal/models"
)

const (
	ServiceName           = "saferoute.v1.SelectionService"
	GetSnapshotMethod     = "/" + ServiceName + "/GetSnapshot"
	StreamSnapshotsMethod = "/" + ServiceName + "/StreamSnapshots"
)

type GetSnapshotRequest struct {
	SessionID string `json:"session_id"`
}

type StreamSnapshotsRequest struct {
	SessionID string `json:"session_id"`
	// SkipCurrent suppresses the snapshot normally sent on subscribe.
	SkipCurrent bool `json:"skip_current,omitempty"`
}

type SnapshotStream interface {
	Send(*models.Snapshot) error
	Context() context.Context
}

type SelectionServiceServer interface {
	GetSnapshot(context.Context, *GetSnapshotRequest) (*models.Snapshot, error)
	StreamSnapshots(*StreamSnapshotsRequest, SnapshotStream) error
}

type snapshotStream struct {
	grpc.ServerStream
}

func (s *snapshotStream) Send(m *models.Snapshot) error {
	return s.ServerStream.SendMsg(m)
}

func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SelectionServiceServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetSnapshotMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SelectionServiceServer).GetSnapshot(ctx, req.(*GetSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamSnapshotsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamSnapshotsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SelectionServiceServer).StreamSnapshots(in, &snapshotStream{stream})
}

// ServiceDesc describes SelectionService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SelectionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetSnapshot",
			Handler:    getSnapshotHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamSnapshots",
			Handler:       streamSnapshotsHandler,
			ServerStreams: true,
		},
	},
}
