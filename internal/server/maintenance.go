package server

import (
	"DepositsDetector/internal/observability"
	"context"
	"encoding/json"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	processDepositPath     = "/api/maintenance/process-deposit"
	maintenanceServiceName = "deposits.v1.Maintenance"
	processDepositMethod   = "/" + maintenanceServiceName + "/ProcessDeposit"
)

type ProcessDepositRequest struct {
	DepositID int64 `json:"deposit_id"`
	// BrokerAccountID defaults to the first configured account when zero.
	BrokerAccountID int64 `json:"broker_account_id,omitempty"`
}

type ProcessDepositResponse struct {
	Result string `json:"result"`
}

// MaintenanceServer is the gRPC maintenance contract.
type MaintenanceServer interface {
	ProcessDeposit(ctx context.Context, req *ProcessDepositRequest) (*ProcessDepositResponse, error)
}

type maintenance struct {
	reprocessor      Reprocessor
	defaultAccountID int64
	logger           zerolog.Logger
}

func (m *maintenance) ProcessDeposit(ctx context.Context, req *ProcessDepositRequest) (*ProcessDepositResponse, error) {
	if req.DepositID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "deposit_id is required")
	}

	accountID := req.BrokerAccountID
	if accountID == 0 {
		accountID = m.defaultAccountID
	}

	result, err := m.reprocessor.Reprocess(ctx, accountID, req.DepositID)
	if err != nil {
		m.logger.Error().Err(err).
			Int64(observability.FieldDepositID, req.DepositID).
			Int64(observability.FieldAccountID, accountID).
			Msg("manual deposit processing failed")
		return nil, status.Errorf(codes.Internal, "process deposit %d: %v", req.DepositID, err)
	}
	return &ProcessDepositResponse{Result: string(result)}, nil
}

// handleProcessDeposit is the HTTP/JSON face of ProcessDeposit.
func (m *maintenance) handleProcessDeposit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req ProcessDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := m.ProcessDeposit(r.Context(), &req)
	if err != nil {
		writeJSON(w, runtime.HTTPStatusFromCode(status.Code(err)), map[string]string{"error": status.Convert(err).Message()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func RegisterMaintenanceServer(s grpc.ServiceRegistrar, srv MaintenanceServer) {
	s.RegisterService(&maintenanceServiceDesc, srv)
}

var maintenanceServiceDesc = grpc.ServiceDesc{
	ServiceName: maintenanceServiceName,
	HandlerType: (*MaintenanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ProcessDeposit",
			Handler:    processDepositHandler,
		},
	},
}

func processDepositHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProcessDepositRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MaintenanceServer).ProcessDeposit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: processDepositMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MaintenanceServer).ProcessDeposit(ctx, req.(*ProcessDepositRequest))
	}
	return interceptor(ctx, in, info, handler)
}
