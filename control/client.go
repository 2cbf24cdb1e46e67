package control

import (
	"context"
	"io"

	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial opens an insecure connection to a control server.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to %s", addr)
	}
	return conn, nil
}

func (c *Client) SimulateCall(ctx context.Context, number string) (types.CallSession, error) {
	return c.invoke(ctx, simulateCallMethod, wrapperspb.String(number))
}

func (c *Client) HandleCallAction(ctx context.Context, action string) (types.CallSession, error) {
	return c.invoke(ctx, handleCallActionMethod, wrapperspb.String(action))
}

func (c *Client) Session(ctx context.Context) (types.CallSession, error) {
	return c.invoke(ctx, getSessionMethod, &emptypb.Empty{})
}

func (c *Client) invoke(ctx context.Context, method string, in any) (types.CallSession, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return types.CallSession{}, errors.Wrap(err, method)
	}
	return SessionFromStruct(out), nil
}

// Watch calls fn for every session the server streams until ctx is done or
// the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(types.CallSession)) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], watchMethod)
	if err != nil {
		return errors.Wrap(err, "error opening watch stream")
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return errors.Wrap(err, "error starting watch")
	}
	if err := stream.CloseSend(); err != nil {
		return errors.Wrap(err, "error starting watch")
	}
	for {
		msg := new(structpb.Struct)
		err := stream.RecvMsg(msg)
		if err == io.EOF || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "watch stream failed")
		}
		fn(SessionFromStruct(msg))
	}
}
