package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// stubMsg satisfies jetstream.Msg for channel-plumbing tests.
type stubMsg struct {
	data []byte
}

func (s *stubMsg) Metadata() (*jetstream.MsgMetadata, error) { return nil, nil }
func (s *stubMsg) Data() []byte                              { return s.data }
func (s *stubMsg) Headers() nats.Header                      { return nil }
func (s *stubMsg) Subject() string                           { return BundlesSubjectBase + ".demo" }
func (s *stubMsg) Reply() string                             { return "" }
func (s *stubMsg) Ack() error                                { return nil }
func (s *stubMsg) DoubleAck(context.Context) error           { return nil }
func (s *stubMsg) Nak() error                                { return nil }
func (s *stubMsg) NakWithDelay(time.Duration) error          { return nil }
func (s *stubMsg) InProgress() error                         { return nil }
func (s *stubMsg) Term() error                               { return nil }
func (s *stubMsg) TermWithReason(string) error               { return nil }

func TestForwardBatch_DeliversWholeBatch(t *testing.T) {
	in := make(chan jetstream.Msg, 3)
	for i := 0; i < 3; i++ {
		in <- &stubMsg{data: []byte{byte(i)}}
	}
	close(in)

	out := make(chan jetstream.Msg, 3)
	if !forwardBatch(context.Background(), in, out) {
		t.Fatal("forwardBatch reported cancellation on a live context")
	}
	if len(out) != 3 {
		t.Errorf("forwarded %d messages; want 3", len(out))
	}
}

func TestForwardBatch_CancelledWithSaturatedWorkers(t *testing.T) {
	in := make(chan jetstream.Msg, 1)
	in <- &stubMsg{}
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No reader on out: the send can never complete. Cancellation must
	// release the forwarder instead of blocking it forever.
	done := make(chan bool, 1)
	go func() {
		done <- forwardBatch(ctx, in, make(chan jetstream.Msg))
	}()

	select {
	case ok := <-done:
		if ok {
			t.Error("cancelled forward should report false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("forwardBatch stayed blocked after cancellation")
	}
}
