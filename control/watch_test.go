package control

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Reverse-Call-Center/call-signal/signal"
	"github.com/Reverse-Call-Center/call-signal/types"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"gotest.tools/assert"
)

// gatedStream holds every send until the gate is opened.
type gatedStream struct {
	ctx     context.Context
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once

	mutex sync.Mutex
	sent  []types.CallSession
}

func newGatedStream(ctx context.Context) *gatedStream {
	return &gatedStream{ctx: ctx, gate: make(chan struct{}), entered: make(chan struct{})}
}

func (s *gatedStream) SetHeader(metadata.MD) error  { return nil }
func (s *gatedStream) SendHeader(metadata.MD) error { return nil }
func (s *gatedStream) SetTrailer(metadata.MD)       {}
func (s *gatedStream) Context() context.Context     { return s.ctx }
func (s *gatedStream) RecvMsg(any) error            { return nil }

func (s *gatedStream) SendMsg(m any) error {
	s.once.Do(func() { close(s.entered) })
	<-s.gate
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sent = append(s.sent, SessionFromStruct(m.(*structpb.Struct)))
	return nil
}

func (s *gatedStream) last() (types.CallSession, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.sent) == 0 {
		return types.CallSession{}, false
	}
	return s.sent[len(s.sent)-1], true
}

func TestWatchSlowClientEndsOnLatestSession(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	controller := signal.NewController(nopVibrator{}, &dialRecorder{})
	srv := NewServer(controller, logrus.NewEntry(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := newGatedStream(ctx)

	done := make(chan error, 1)
	go func() { done <- srv.Watch(&emptypb.Empty{}, stream) }()
	<-stream.entered

	for i := 0; i < 3*watchBuffer; i++ {
		controller.SimulateCall(fmt.Sprintf("+1555%04d", i))
	}
	controller.HandleCallAction(signal.ActionReject)
	want := controller.Session()
	close(stream.gate)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, ok := stream.last()
		if ok && got == want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watcher ended on %+v, want %+v", got, want)
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	assert.NilError(t, <-done)
	got, _ := stream.last()
	assert.DeepEqual(t, got, want)
	assert.Assert(t, !got.IsVisible)
}
