package ingestion

import (
	"context"

	"google.golang.org/grpc"
)

// FeedServer is the server side of the deposit feed contract. Implemented
// by local stubs and test doubles.
type FeedServer interface {
	GetUpdates(req *GetUpdatesRequest, stream UpdatesStream) error
}

// UpdatesStream sends batches back to a GetUpdates caller.
type UpdatesStream interface {
	Send(*DepositUpdatesBatch) error
	Context() context.Context
}

func RegisterFeedServer(s grpc.ServiceRegistrar, srv FeedServer) {
	s.RegisterService(&feedServiceDesc, srv)
}

var feedServiceDesc = grpc.ServiceDesc{
	ServiceName: depositsServiceName,
	HandlerType: (*FeedServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetUpdates",
			Handler:       getUpdatesHandler,
			ServerStreams: true,
		},
	},
}

func getUpdatesHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(GetUpdatesRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(FeedServer).GetUpdates(req, &updatesServerStream{stream})
}

type updatesServerStream struct {
	grpc.ServerStream
}

func (s *updatesServerStream) Send(b *DepositUpdatesBatch) error {
	return s.ServerStream.SendMsg(b)
}
