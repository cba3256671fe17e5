package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSChannel is the message-pass fallback transport (§2) for workers
// that do not share an address space with the orchestrator — distinct
// processes or hosts. Grounded on the teacher's internal/messaging/nats
// subscription and queue-group setup.
type NATSChannel struct {
	conn       *nats.Conn
	sendSubj   string
	recvSubj   string
	queueGroup string
	sub        *nats.Subscription
	inbox      chan Frame
	logger     *zap.Logger
}

type wireFrame struct {
	RequestID int64    `json:"request_id"`
	Payload   []byte   `json:"payload"`
	Buffers   [][]byte `json:"buffers,omitempty"`
}

// DialNATS connects to a NATS server and wires up a request/response pair
// of subjects for one worker's transport.
func DialNATS(url, sendSubj, recvSubj, queueGroup string, logger *zap.Logger) (*NATSChannel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := nats.Connect(url,
		nats.Name("gopool"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("channel: connect nats: %w", err)
	}

	c := &NATSChannel{
		conn:       conn,
		sendSubj:   sendSubj,
		recvSubj:   recvSubj,
		queueGroup: queueGroup,
		inbox:      make(chan Frame, 256),
		logger:     logger,
	}

	sub, err := conn.QueueSubscribe(recvSubj, queueGroup, c.onMessage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("channel: subscribe %s: %w", recvSubj, err)
	}
	sub.SetPendingLimits(1024, 16*1024*1024)
	c.sub = sub

	return c, nil
}

func (c *NATSChannel) onMessage(msg *nats.Msg) {
	var wf wireFrame
	if err := json.Unmarshal(msg.Data, &wf); err != nil {
		c.logger.Error("failed to decode frame", zap.Error(err))
		return
	}
	select {
	case c.inbox <- Frame{RequestID: wf.RequestID, Payload: wf.Payload, Buffers: wf.Buffers}:
	default:
		c.logger.Warn("inbox full, dropping frame", zap.Int64("request_id", wf.RequestID))
	}
}

func (c *NATSChannel) Send(ctx context.Context, f Frame) error {
	data, err := json.Marshal(wireFrame{RequestID: f.RequestID, Payload: f.Payload, Buffers: f.Buffers})
	if err != nil {
		return err
	}
	return c.conn.Publish(c.sendSubj, data)
}

func (c *NATSChannel) Recv(ctx context.Context) (Frame, error) {
	select {
	case f := <-c.inbox:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (c *NATSChannel) Close() error {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.conn.Close()
	return nil
}
