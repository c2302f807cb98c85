package bootstrap

import "context"

// StaticBootstrap discovers peers from a fixed, operator-supplied list.
type StaticBootstrap struct {
	peers []string
}

func NewStaticBootstrap(peers []string) *StaticBootstrap {
	return &StaticBootstrap{peers: peers}
}

func (s *StaticBootstrap) Discover(ctx context.Context) ([]string, error) {
	return s.peers, nil
}

func (s *StaticBootstrap) Register(ctx context.Context, selfID, selfAddr string) error {
	return nil
}

func (s *StaticBootstrap) Deregister(ctx context.Context, selfID, selfAddr string) error {
	return nil
}
