package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	Syncer_Pull_FullMethodName         = "/clubsync.Syncer/Pull"
	Syncer_Push_FullMethodName         = "/clubsync.Syncer/Push"
	Syncer_TrackChanges_FullMethodName = "/clubsync.Syncer/TrackChanges"
)

// SyncerClient is the client API for the Syncer service.
type SyncerClient interface {
	Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullReply, error)
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushReply, error)
	TrackChanges(ctx context.Context, in *TrackChangesRequest, opts ...grpc.CallOption) (Syncer_TrackChangesClient, error)
}

type syncerClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncerClient(cc grpc.ClientConnInterface) SyncerClient {
	return &syncerClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *syncerClient) Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullReply, error) {
	out := new(PullReply)
	err := c.cc.Invoke(ctx, Syncer_Pull_FullMethodName, in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncerClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushReply, error) {
	out := new(PushReply)
	err := c.cc.Invoke(ctx, Syncer_Push_FullMethodName, in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncerClient) TrackChanges(ctx context.Context, in *TrackChangesRequest, opts ...grpc.CallOption) (Syncer_TrackChangesClient, error) {
	stream, err := c.cc.NewStream(ctx, &Syncer_ServiceDesc.Streams[0], Syncer_TrackChanges_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &syncerTrackChangesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type Syncer_TrackChangesClient interface {
	Recv() (*ChangeNotice, error)
	grpc.ClientStream
}

type syncerTrackChangesClient struct {
	grpc.ClientStream
}

func (x *syncerTrackChangesClient) Recv() (*ChangeNotice, error) {
	m := new(ChangeNotice)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SyncerServer is the server API for the Syncer service. Implementations
// must embed UnimplementedSyncerServer.
type SyncerServer interface {
	Pull(context.Context, *PullRequest) (*PullReply, error)
	Push(context.Context, *PushRequest) (*PushReply, error)
	TrackChanges(*TrackChangesRequest, Syncer_TrackChangesServer) error
	mustEmbedUnimplementedSyncerServer()
}

type UnimplementedSyncerServer struct{}

func (UnimplementedSyncerServer) Pull(context.Context, *PullRequest) (*PullReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Pull not implemented")
}
func (UnimplementedSyncerServer) Push(context.Context, *PushRequest) (*PushReply, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Push not implemented")
}
func (UnimplementedSyncerServer) TrackChanges(*TrackChangesRequest, Syncer_TrackChangesServer) error {
	return status.Errorf(codes.Unimplemented, "method TrackChanges not implemented")
}
func (UnimplementedSyncerServer) mustEmbedUnimplementedSyncerServer() {}

func RegisterSyncerServer(s grpc.ServiceRegistrar, srv SyncerServer) {
	s.RegisterService(&Syncer_ServiceDesc, srv)
}

func _Syncer_Pull_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PullRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncerServer).Pull(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Syncer_Pull_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncerServer).Pull(ctx, req.(*PullRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Syncer_Push_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncerServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Syncer_Push_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SyncerServer).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Syncer_TrackChanges_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(TrackChangesRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SyncerServer).TrackChanges(m, &syncerTrackChangesServer{stream})
}

type Syncer_TrackChangesServer interface {
	Send(*ChangeNotice) error
	grpc.ServerStream
}

type syncerTrackChangesServer struct {
	grpc.ServerStream
}

func (x *syncerTrackChangesServer) Send(m *ChangeNotice) error {
	return x.ServerStream.SendMsg(m)
}

var Syncer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "clubsync.Syncer",
	HandlerType: (*SyncerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Pull",
			Handler:    _Syncer_Pull_Handler,
		},
		{
			MethodName: "Push",
			Handler:    _Syncer_Push_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "TrackChanges",
			Handler:       _Syncer_TrackChanges_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "proto/syncer.go",
}
