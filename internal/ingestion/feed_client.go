package ingestion

import (
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/grpcutil"
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	depositsServiceName = "deposits.v1.Deposits"
	getUpdatesMethod    = "/" + depositsServiceName + "/GetUpdates"
)

var getUpdatesStreamDesc = &grpc.StreamDesc{
	StreamName:    "GetUpdates",
	ServerStreams: true,
}

// FeedClient consumes the upstream deposit update feed over a server stream.
type FeedClient struct {
	conn grpc.ClientConnInterface
}

func NewFeedClient(conn grpc.ClientConnInterface) *FeedClient {
	return &FeedClient{conn: conn}
}

// Subscribe opens GetUpdates and hands each received batch to handle in
// order. It returns nil on a clean end of stream, ErrRateLimited when the
// feed is throttling, and ctx.Err() once ctx is cancelled.
func (fc *FeedClient) Subscribe(ctx context.Context, req event.SubscribeRequest, handle func([]event.DepositUpdate) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := fc.conn.NewStream(ctx, getUpdatesStreamDesc, getUpdatesMethod, grpcutil.JSON())
	if err != nil {
		return translateStatus(ctx, "open updates stream", err)
	}
	// io.EOF here means the server already ended the stream; RecvMsg reports why.
	if err := stream.SendMsg(requestToWire(req)); err != nil && !errors.Is(err, io.EOF) {
		return translateStatus(ctx, "send updates request", err)
	}
	if err := stream.CloseSend(); err != nil {
		return translateStatus(ctx, "close updates request", err)
	}

	for {
		batch := new(DepositUpdatesBatch)
		if err := stream.RecvMsg(batch); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return translateStatus(ctx, "receive updates", err)
		}

		updates, err := batchFromWire(batch)
		if err != nil {
			return fmt.Errorf("decode updates: %w", err)
		}
		if err := handle(updates); err != nil {
			return err
		}
	}
}

func translateStatus(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return fmt.Errorf("%s: %w: %s", op, ErrRateLimited, status.Convert(err).Message())
	case codes.Canceled:
		return fmt.Errorf("%s: %w", op, context.Canceled)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
