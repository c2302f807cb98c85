package hostapi

import (
	"context"

	"p2pstreamd/internal/mailbox"
	"p2pstreamd/internal/ring"
)

// nodeService adapts a *mailbox.Mailbox to Service. Every method does
// nothing but convert wire-shaped ids and hand off to the Mailbox,
// which is the only thing allowed to touch the Runner.
type nodeService struct {
	mbox *mailbox.Mailbox
}

// NewService wraps mbox as a Service for registration against
// ServiceDesc.
func NewService(mbox *mailbox.Mailbox) Service { return &nodeService{mbox: mbox} }

func (s *nodeService) Subscribe(_ context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	s.mbox.Subscribe(ring.ChannelId(req.Channel))
	return &SubscribeResponse{}, nil
}

func (s *nodeService) Unsubscribe(_ context.Context, req *UnsubscribeRequest) (*UnsubscribeResponse, error) {
	s.mbox.Unsubscribe(ring.ChannelId(req.Channel))
	return &UnsubscribeResponse{}, nil
}

func (s *nodeService) Publish(_ context.Context, req *PublishRequest) (*PublishResponse, error) {
	s.mbox.Publish(ring.ChannelId(req.Channel), req.Data)
	return &PublishResponse{}, nil
}

func (s *nodeService) AddChannel(_ context.Context, req *AddChannelRequest) (*AddChannelResponse, error) {
	s.mbox.AddChannel(ring.ChannelId(req.Channel))
	return &AddChannelResponse{}, nil
}

func (s *nodeService) RemoveChannel(_ context.Context, req *RemoveChannelRequest) (*RemoveChannelResponse, error) {
	s.mbox.RemoveChannel(ring.ChannelId(req.Channel))
	return &RemoveChannelResponse{}, nil
}

func (s *nodeService) JoinRing(_ context.Context, req *JoinRingRequest) (*JoinRingResponse, error) {
	if err := s.mbox.JoinRing(req.BootstrapAddress, ring.NodeId(req.BootstrapNodeId)); err != nil {
		return &JoinRingResponse{Error: err.Error()}, nil
	}
	return &JoinRingResponse{}, nil
}

func (s *nodeService) Status(_ context.Context, _ *StatusRequest) (*StatusResponse, error) {
	st := s.mbox.Status()
	resp := &StatusResponse{
		Self:    uint32(st.Self),
		Address: st.Address,
	}
	if st.Successor != nil {
		resp.HasSuccessor = true
		resp.Successor = uint32(*st.Successor)
	}
	if st.Predecessor != nil {
		resp.HasPredecessor = true
		resp.Predecessor = uint32(*st.Predecessor)
	}
	for _, ch := range st.LocalChannels {
		resp.LocalChannels = append(resp.LocalChannels, uint32(ch))
	}
	for _, ch := range st.RemoteChannels {
		resp.RemoteChannels = append(resp.RemoteChannels, uint32(ch))
	}
	return resp, nil
}
