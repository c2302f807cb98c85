package hostapi

// The request/response pairs below are what a protoc-generated
// *.pb.go file would normally contribute. No .proto file exists
// anywhere in this repository's ancestry, so they are hand-written
// plain structs instead, carried over the wire by gobCodec.

type SubscribeRequest struct{ Channel uint32 }
type SubscribeResponse struct{}

type UnsubscribeRequest struct{ Channel uint32 }
type UnsubscribeResponse struct{}

type PublishRequest struct {
	Channel uint32
	Data    []byte
}
type PublishResponse struct{}

type AddChannelRequest struct{ Channel uint32 }
type AddChannelResponse struct{}

type RemoveChannelRequest struct{ Channel uint32 }
type RemoveChannelResponse struct{}

type JoinRingRequest struct {
	BootstrapAddress string
	BootstrapNodeId  uint32
}

// JoinRingResponse carries Error rather than relying on the gRPC
// status alone: a dial failure is routine node-churn, not a reason to
// fail the RPC itself.
type JoinRingResponse struct {
	Error string
}

type StatusRequest struct{}

type StatusResponse struct {
	Self           uint32
	Address        string
	HasSuccessor   bool
	Successor      uint32
	HasPredecessor bool
	Predecessor    uint32
	LocalChannels  []uint32
	RemoteChannels []uint32
}
