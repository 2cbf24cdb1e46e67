package control

import (
	"context"
	"sync/atomic"

	"github.com/Reverse-Call-Center/call-signal/signal"
	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const watchBuffer = 16

// Controller is the call signal surface the control service exposes.
type Controller interface {
	SimulateCall(number ...string) types.CallSession
	HandleCallAction(action string) types.CallSession
	Session() types.CallSession
	OnSessionChanged(l signal.Listener) func()
}

type Server struct {
	controller Controller
	log        *logrus.Entry
}

func NewServer(controller Controller, log *logrus.Entry) *Server {
	return &Server{controller: controller, log: log}
}

func (s *Server) SimulateCall(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	return encode(s.controller.SimulateCall(in.GetValue()))
}

func (s *Server) HandleCallAction(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	return encode(s.controller.HandleCallAction(in.GetValue()))
}

func (s *Server) GetSession(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encode(s.controller.Session())
}

// Watch streams the current session and then every committed change until
// the client goes away. A watcher that falls behind skips intermediate
// updates but is always sent the latest session once it catches up.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	updates := make(chan types.CallSession, watchBuffer)
	var dirty atomic.Bool
	unsubscribe := s.controller.OnSessionChanged(signal.ListenerFunc(func(cs types.CallSession) {
		select {
		case updates <- cs:
		default:
			dirty.Store(true)
			s.log.Debug("Watcher too slow, dropping session update")
		}
	}))
	defer unsubscribe()

	s.log.Debug("Watcher connected")
	defer s.log.Debug("Watcher disconnected")

	if err := send(stream, s.controller.Session()); err != nil {
		return err
	}
	for {
		select {
		case cs := <-updates:
			if err := send(stream, cs); err != nil {
				return err
			}
			if dirty.Swap(false) {
				// Everything still buffered is no newer than the live session.
				for len(updates) > 0 {
					<-updates
				}
				if err := send(stream, s.controller.Session()); err != nil {
					return err
				}
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func send(stream grpc.ServerStream, cs types.CallSession) error {
	msg, err := encode(cs)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func encode(cs types.CallSession) (*structpb.Struct, error) {
	msg, err := SessionToStruct(cs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return msg, nil
}

// NewGRPCServer returns a grpc.Server with the control service registered.
func NewGRPCServer(controller Controller, log *logrus.Entry) *grpc.Server {
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(logUnary(log)))
	RegisterCallSignalServer(grpcServer, NewServer(controller, log))
	return grpcServer
}

func logUnary(log *logrus.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		entry := log.WithField("method", info.FullMethod)
		if err != nil {
			entry.WithError(err).Warn("Control request failed")
		} else {
			entry.Debug("Control request handled")
		}
		return resp, err
	}
}
