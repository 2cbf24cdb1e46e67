package control

import (
	"context"

	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "callsignal.v1.CallSignal"

const (
	simulateCallMethod     = "/" + ServiceName + "/SimulateCall"
	handleCallActionMethod = "/" + ServiceName + "/HandleCallAction"
	getSessionMethod       = "/" + ServiceName + "/GetSession"
	watchMethod            = "/" + ServiceName + "/Watch"
)

// CallSignalServer is the server side of the control service.
type CallSignalServer interface {
	SimulateCall(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	HandleCallAction(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

func RegisterCallSignalServer(s grpc.ServiceRegistrar, srv CallSignalServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unaryHandler[In any](method string, newIn func() *In, call func(CallSignalServer, context.Context, *In) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newIn()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CallSignalServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CallSignalServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CallSignalServer).Watch(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CallSignalServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SimulateCall",
			Handler: unaryHandler(simulateCallMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s CallSignalServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
					return s.SimulateCall(ctx, in)
				}),
		},
		{
			MethodName: "HandleCallAction",
			Handler: unaryHandler(handleCallActionMethod, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) },
				func(s CallSignalServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
					return s.HandleCallAction(ctx, in)
				}),
		},
		{
			MethodName: "GetSession",
			Handler: unaryHandler(getSessionMethod, func() *emptypb.Empty { return new(emptypb.Empty) },
				func(s CallSignalServer, ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error) {
					return s.GetSession(ctx, in)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
}

// SessionToStruct encodes a session for the wire. An absent number is null.
func SessionToStruct(s types.CallSession) (*structpb.Struct, error) {
	var number any
	if s.HasNumber() {
		number = s.Number
	}
	st, err := structpb.NewStruct(map[string]any{
		"id":                     s.ID,
		"incoming_number":        number,
		"is_call_screen_visible": s.IsVisible,
		"is_call_active":         s.IsActive,
		"state":                  s.State().String(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "error encoding session")
	}
	return st, nil
}

func SessionFromStruct(st *structpb.Struct) types.CallSession {
	fields := st.GetFields()
	return types.CallSession{
		ID:        fields["id"].GetStringValue(),
		Number:    fields["incoming_number"].GetStringValue(),
		IsVisible: fields["is_call_screen_visible"].GetBoolValue(),
		IsActive:  fields["is_call_active"].GetBoolValue(),
	}
}
