// Package api exposes the running game to operators: a gRPC admin service
// and an HTTP surface for health, metrics and spectators.
package api

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/service"
	"github.com/earthtowalt/hide-and-seek/service/i"
)

const adminServiceName = "hideseek.admin.v1.Admin"

// AdminServer is the server API for the admin service.
type AdminServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Kick(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	ResetRound(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", AdminServer.Status),
		unary("Kick", AdminServer.Kick),
		unary("ResetRound", AdminServer.ResetRound),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hideseek/admin/v1/admin.proto",
}

func fullMethod(name string) string {
	return "/" + adminServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Server implements AdminServer on top of a game server.
type Server struct {
	game i.GameServer
}

// RegisterAdminServer registers the admin service for g on gsr.
func RegisterAdminServer(gsr grpc.ServiceRegistrar, g i.GameServer) *Server {
	s := &Server{game: g}
	gsr.RegisterService(&adminServiceDesc, s)
	return s
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(statusFields(s.game.Snapshot(), s.game.Metrics()))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "building status: %v", err)
	}
	return st, nil
}

func (s *Server) Kick(ctx context.Context, r *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if r.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "username is required")
	}
	if err := s.game.Kick(r.GetValue()); err != nil {
		return nil, grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ResetRound(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.game.ResetRound(); err != nil {
		return nil, grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownPlayer):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrServerStopped):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// statusFields flattens a snapshot into values structpb accepts.
func statusFields(u protocol.Update, metrics map[string]any) map[string]any {
	players := make([]any, len(u.Players))
	for n, p := range u.Players {
		players[n] = map[string]any{
			"username": p.Username,
			"role":     p.Role.String(),
			"x":        p.X,
			"y":        p.Y,
			"speed":    p.Speed,
			"inputs":   p.Inputs.String(),
			"score":    p.Score,
		}
	}
	return map[string]any{
		"timestamp": u.Timestamp,
		"state":     u.State.String(),
		"map_seed":  u.MapSeed,
		"players":   players,
		"metrics":   metrics,
	}
}

// AdminClient calls the admin service.
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) Kick(ctx context.Context, username string, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("Kick"), wrapperspb.String(username), &emptypb.Empty{}, opts...)
}

func (c *AdminClient) ResetRound(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod("ResetRound"), &emptypb.Empty{}, &emptypb.Empty{}, opts...)
}
