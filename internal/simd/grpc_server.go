package simd

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/models"
)

// EvaluationServiceName is the fully qualified gRPC service name
const EvaluationServiceName = "whsim.v1.EvaluationService"

// EvaluationServiceServer is the server API of the evaluation service.
// Requests and responses are google.protobuf.Struct messages whose fields
// mirror the HTTP API.
type EvaluationServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(EvaluationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EvaluationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + EvaluationServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EvaluationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// EvaluationServiceDesc describes the service for grpc.Server.RegisterService
var EvaluationServiceDesc = grpc.ServiceDesc{
	ServiceName: EvaluationServiceName,
	HandlerType: (*EvaluationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateRun", Handler: unaryHandler("CreateRun", EvaluationServiceServer.CreateRun)},
		{MethodName: "StartRun", Handler: unaryHandler("StartRun", EvaluationServiceServer.StartRun)},
		{MethodName: "StopRun", Handler: unaryHandler("StopRun", EvaluationServiceServer.StopRun)},
		{MethodName: "GetRun", Handler: unaryHandler("GetRun", EvaluationServiceServer.GetRun)},
		{MethodName: "ListRuns", Handler: unaryHandler("ListRuns", EvaluationServiceServer.ListRuns)},
		{MethodName: "GetReport", Handler: unaryHandler("GetReport", EvaluationServiceServer.GetReport)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "whsim/v1/evaluation.proto",
}

// RegisterGRPC registers the evaluation and health services on s
func RegisterGRPC(s *grpc.Server, srv EvaluationServiceServer) *health.Server {
	s.RegisterService(&EvaluationServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(EvaluationServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// EvaluationGRPCServer implements EvaluationServiceServer using a RunStore backend.
type EvaluationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

func NewEvaluationGRPCServer(store *RunStore, executor *RunExecutor) *EvaluationGRPCServer {
	return &EvaluationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *EvaluationGRPCServer) CreateRun(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	inputValue, ok := fields["input"]
	if !ok || inputValue.GetStructValue() == nil {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}

	var input RunInput
	if err := decodeStruct(inputValue.GetStructValue(), &input); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid input: "+err.Error())
	}

	rec, err := s.store.Create(fields["run_id"].GetStringValue(), &input)
	if err != nil {
		if errors.Is(err, ErrRunExists) {
			return nil, status.Error(codes.AlreadyExists, err.Error())
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	logger.Info("run created", "run_id", rec.Run.ID, "policy", rec.Run.Policy)
	return runResponse(rec)
}

func (s *EvaluationGRPCServer) StartRun(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(req, s.Executor.Start)
}

func (s *EvaluationGRPCServer) StopRun(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.transition(req, s.Executor.Stop)
}

func (s *EvaluationGRPCServer) transition(req *structpb.Struct, fn func(string) (*RunRecord, error)) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}
	rec, err := fn(runID)
	if err != nil {
		return nil, grpcError(err)
	}
	return runResponse(rec)
}

func (s *EvaluationGRPCServer) GetRun(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return runResponse(rec)
}

func (s *EvaluationGRPCServer) ListRuns(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	limit := 50
	if v := int(fields["limit"].GetNumberValue()); v > 0 {
		limit = v
	}
	offset := max(int(fields["offset"].GetNumberValue()), 0)

	recs := s.store.ListFiltered(limit, offset, models.RunStatus(fields["status"].GetStringValue()))
	runs := make([]any, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, convertRunToJSON(rec))
	}
	return toStruct(map[string]any{"runs": runs})
}

func (s *EvaluationGRPCServer) GetReport(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	if rec.Run.Summary == nil {
		return nil, status.Error(codes.FailedPrecondition, "report not available")
	}
	return toStruct(reportResponse(rec))
}

func requireRunID(req *structpb.Struct) (string, error) {
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return "", status.Error(codes.InvalidArgument, "run_id is required")
	}
	return runID, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func runResponse(rec *RunRecord) (*structpb.Struct, error) {
	return toStruct(map[string]any{"run": convertRunToJSON(rec)})
}

// toStruct converts v through its JSON form, so any JSON-encodable value
// (including typed structs) can be sent
func toStruct(v map[string]any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// decodeStruct fills v from a Struct via its JSON form
func decodeStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// EvaluationClient is a thin client for the evaluation service
type EvaluationClient struct {
	cc grpc.ClientConnInterface
}

func NewEvaluationClient(cc grpc.ClientConnInterface) *EvaluationClient {
	return &EvaluationClient{cc: cc}
}

// Call invokes method with a request built from fields
func (c *EvaluationClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+EvaluationServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
