package server

import (
	"DepositsDetector/internal/core"
	_ "DepositsDetector/internal/grpcutil" // registers the JSON codec
	"DepositsDetector/internal/observability"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Reprocessor runs one deposit through the credit pipeline on demand.
type Reprocessor interface {
	Reprocess(ctx context.Context, brokerAccountID, depositID int64) (core.ReprocessResult, error)
}

// Deps holds everything the admin surfaces need.
type Deps struct {
	Reprocessor      Reprocessor
	DefaultAccountID int64
	HealthChecker    *observability.HealthChecker
	Logger           zerolog.Logger
}

// Server hosts the maintenance API on gRPC and on HTTP/JSON, plus the
// health endpoints.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server
	grpcAddr     string
	httpAddr     string
	handler      http.Handler
}

func New(grpcAddr, httpAddr string, deps *Deps) (*Server, error) {
	maint := &maintenance{
		reprocessor:      deps.Reprocessor,
		defaultAccountID: deps.DefaultAccountID,
		logger:           deps.Logger,
	}

	grpcServer := grpc.NewServer()
	RegisterMaintenanceServer(grpcServer, maint)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gw := runtime.NewServeMux()
	if err := gw.HandlePath(http.MethodPost, processDepositPath, maint.handleProcessDeposit); err != nil {
		return nil, fmt.Errorf("register %s: %w", processDepositPath, err)
	}

	httpMux := http.NewServeMux()
	if deps.HealthChecker != nil {
		httpMux.HandleFunc("/healthz", deps.HealthChecker.LivenessHandler)
		httpMux.HandleFunc("/readyz", deps.HealthChecker.ReadinessHandler)
	}
	httpMux.Handle("/", gw)

	return &Server{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		grpcAddr:     grpcAddr,
		httpAddr:     httpAddr,
		handler:      httpMux,
	}, nil
}

// Handler exposes the HTTP routes; used by tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GRPC exposes the gRPC server so callers can serve it on their own listener.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// StartGRPC serves gRPC until ctx is cancelled.
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: gRPC server shutting down...")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	log.Printf("INFO: gRPC server listening on %s", s.grpcAddr)
	return s.grpcServer.Serve(lis)
}

// StartHTTP serves the admin HTTP API until ctx is cancelled.
func (s *Server) StartHTTP(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: admin HTTP listening on %s", s.httpAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
