// Package canbus delivers timestamped frames from a live socketcan
// interface or a candump log replay. The decode engine is agnostic to
// which source feeds it.
package canbus

import (
	"context"
	"log"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
	_ "periph.io/x/host/v3/rpi"

	"parren.ch/candi/pkg/decode"
)

type Transmitter interface {
	TransmitFrame(context.Context, can.Frame) error
}

type Receiver interface {
	Receive() bool
	Frame() decode.Frame
}

type Client interface {
	Transmitter
	Receiver
}

type clientImpl struct {
	conn net.Conn
	xmit *socketcan.Transmitter
	recv *socketcan.Receiver
}

// NewClient dials a socketcan interface such as "can0". Arrival
// timestamps are taken at receive time.
func NewClient(ctx context.Context, device string) Client {
	conn, err := socketcan.DialContext(ctx, "can", device)
	if err != nil {
		log.Fatalf("Unable to dial %v: %v", device, err)
	}
	return &clientImpl{conn: conn,
		xmit: socketcan.NewTransmitter(conn),
		recv: socketcan.NewReceiver(conn)}
}

func (c *clientImpl) TransmitFrame(ctx context.Context, f can.Frame) error {
	return c.xmit.TransmitFrame(ctx, f)
}
func (c *clientImpl) Receive() bool { return c.recv.Receive() }
func (c *clientImpl) Frame() decode.Frame {
	return decode.Frame{Frame: c.recv.Frame(), Timestamp: time.Now()}
}
