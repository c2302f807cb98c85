package hostapi

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a hand-written stub for ServiceDesc, the counterpart a
// generated *_grpc.pb.go file would normally provide. cmd/shell is its
// only consumer.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established *grpc.ClientConn (or any
// ClientConnInterface, for tests).
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) Subscribe(ctx context.Context, channel uint32) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/Subscribe", &SubscribeRequest{Channel: channel}, &SubscribeResponse{})
}

func (c *Client) Unsubscribe(ctx context.Context, channel uint32) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/Unsubscribe", &UnsubscribeRequest{Channel: channel}, &UnsubscribeResponse{})
}

func (c *Client) Publish(ctx context.Context, channel uint32, data []byte) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/Publish", &PublishRequest{Channel: channel, Data: data}, &PublishResponse{})
}

func (c *Client) AddChannel(ctx context.Context, channel uint32) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/AddChannel", &AddChannelRequest{Channel: channel}, &AddChannelResponse{})
}

func (c *Client) RemoveChannel(ctx context.Context, channel uint32) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/RemoveChannel", &RemoveChannelRequest{Channel: channel}, &RemoveChannelResponse{})
}

func (c *Client) JoinRing(ctx context.Context, bootstrapAddress string, bootstrapNodeId uint32) (*JoinRingResponse, error) {
	resp := &JoinRingResponse{}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/JoinRing", &JoinRingRequest{BootstrapAddress: bootstrapAddress, BootstrapNodeId: bootstrapNodeId}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp := &StatusResponse{}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Status", &StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
