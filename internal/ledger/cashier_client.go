package ledger

import (
	"DepositsDetector/internal/grpcutil"
	"DepositsDetector/internal/observability"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"google.golang.org/grpc"
)

const (
	cashierServiceName = "cashier.v1.Cashier"
	cashInOutMethod    = "/" + cashierServiceName + "/CashInOut"
)

// CashierClientConfig tunes the gRPC cashier client.
type CashierClientConfig struct {
	CallTimeout time.Duration
	// RPS caps credit calls per second across all loops; 0 disables the cap.
	RPS     int
	Metrics *observability.Metrics
}

// CashierClient calls the cashier over gRPC behind a circuit breaker and an
// optional rate limiter.
type CashierClient struct {
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
	timeout time.Duration
	metrics *observability.Metrics
}

func NewCashierClient(conn *grpc.ClientConn, cfg CashierClientConfig, logger zerolog.Logger) *CashierClient {
	limiter := ratelimit.NewUnlimited()
	if cfg.RPS > 0 {
		limiter = ratelimit.New(cfg.RPS)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &CashierClient{
		conn:    conn,
		breaker: newCircuitBreaker(logger, cfg.Metrics),
		limiter: limiter,
		timeout: timeout,
		metrics: cfg.Metrics,
	}
}

func newCircuitBreaker(logger zerolog.Logger, metrics *observability.Metrics) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "cashier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cashier circuit breaker state changed")
			if metrics != nil {
				open := 0.0
				if to == gobreaker.StateOpen {
					open = 1
				}
				metrics.LedgerBreakerOpen.Set(open)
			}
		},
	})
}

// CashInOut implements Cashier. Status-level refusals are returned as a
// response, not an error, and do not trip the breaker.
func (c *CashierClient) CashInOut(ctx context.Context, req *CashInOutRequest) (*CashInOutResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cashier CashInOut: %w", err)
	}
	c.limiter.Take()
	// Take has no context; a caller cancelled while throttled must not reach the ledger.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cashier CashInOut: %w", err)
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp := new(CashInOutResponse)
		if err := c.conn.Invoke(callCtx, cashInOutMethod, req, resp, grpcutil.JSON()); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if c.metrics != nil {
		c.metrics.LedgerCallDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("cashier CashInOut: %w", err)
	}

	resp, _ := res.(*CashInOutResponse)
	return resp, nil
}

// CashierServer is the server side of the cashier contract. Used by test
// doubles and local stubs.
type CashierServer interface {
	CashInOut(ctx context.Context, req *CashInOutRequest) (*CashInOutResponse, error)
}

// RegisterCashierServer registers srv on s under the cashier service name.
func RegisterCashierServer(s grpc.ServiceRegistrar, srv CashierServer) {
	s.RegisterService(&cashierServiceDesc, srv)
}

var cashierServiceDesc = grpc.ServiceDesc{
	ServiceName: cashierServiceName,
	HandlerType: (*CashierServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CashInOut",
			Handler:    cashInOutHandler,
		},
	},
}

func cashInOutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CashInOutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CashierServer).CashInOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: cashInOutMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CashierServer).CashInOut(ctx, req.(*CashInOutRequest))
	}
	return interceptor(ctx, in, info, handler)
}
