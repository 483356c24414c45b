// Package tagwriter delivers normalized rows to an OPC-UA server as string
// tag writes.
package tagwriter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

var (
	// ErrConnect is returned when no session could be opened.
	ErrConnect = errors.New("opc-ua connect failed")
	// ErrConnectionLost is returned when the session dropped mid-task.
	ErrConnectionLost = errors.New("opc-ua connection lost")
)

// Client is a connected OPC-UA session as seen by the writer.
type Client interface {
	// Write sets the Value attribute of nodeID to a string variant.
	Write(ctx context.Context, nodeID, value string) error
	// Connected reports whether the session is still usable.
	Connected() bool
	Close(ctx context.Context) error
}

// Dialer opens one session per task.
type Dialer interface {
	Dial(ctx context.Context) (Client, error)
}

// OPCDialer opens anonymous, unsecured sessions with gopcua.
type OPCDialer struct {
	Endpoint       string
	RequestTimeout time.Duration
}

func (d *OPCDialer) Dial(ctx context.Context) (Client, error) {
	opts := []opcua.Option{
		opcua.SecurityMode(ua.MessageSecurityModeNone),
		opcua.SecurityPolicy(ua.SecurityPolicyURINone),
		opcua.AuthAnonymous(),
		opcua.AutoReconnect(false),
	}
	if d.RequestTimeout > 0 {
		opts = append(opts, opcua.RequestTimeout(d.RequestTimeout), opcua.DialTimeout(d.RequestTimeout))
	}

	c, err := opcua.NewClient(d.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, d.Endpoint, err)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, d.Endpoint, err)
	}
	return &opcClient{c: c}, nil
}

type opcClient struct {
	c *opcua.Client
}

func (o *opcClient) Write(ctx context.Context, nodeID, value string) error {
	id, err := ua.ParseNodeID(nodeID)
	if err != nil {
		return fmt.Errorf("parse node id: %w", err)
	}
	v, err := ua.NewVariant(value)
	if err != nil {
		return fmt.Errorf("build variant: %w", err)
	}

	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{{
			NodeID:      id,
			AttributeID: ua.AttributeIDValue,
			Value: &ua.DataValue{
				EncodingMask: ua.DataValueValue,
				Value:        v,
			},
		}},
	}
	resp, err := o.c.Write(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Results) > 0 && resp.Results[0] != ua.StatusOK {
		return fmt.Errorf("write rejected: %w", resp.Results[0])
	}
	return nil
}

func (o *opcClient) Connected() bool {
	return o.c.State() == opcua.Connected
}

func (o *opcClient) Close(ctx context.Context) error {
	return o.c.Close(ctx)
}
