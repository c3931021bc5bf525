package codec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/filtergroup"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/grounding"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/orchestrator"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// DefaultMaxTries bounds Instantiate when the request sets no budget.
const DefaultMaxTries = 1000

// #region server-struct
// Server implements GeneratorServer over one corpus and filter-group index.
// The engine is not concurrent, so calls are serialised.
type Server struct {
	mu       sync.Mutex
	corpus   *scene.Corpus
	orch     *orchestrator.Orchestrator
	logger   *zap.Logger
	maxTries int
}

// NewServer builds the engine behind the service. A nil logger discards logs.
func NewServer(meta *scene.Metadata, corpus *scene.Corpus, index *filtergroup.Index, rng sample.Source, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		corpus:   corpus,
		orch:     orchestrator.NewOrchestrator(meta, corpus, index, rng, logger),
		logger:   logger,
		maxTries: DefaultMaxTries,
	}
}

// #endregion server-struct

// #region execute
// Execute runs a program on one scene.
func (s *Server) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExecuteRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var sc scene.Scene
	switch {
	case req.Scene != nil:
		sc = *req.Scene
	case req.ImageIndex != nil:
		found, ok := s.corpus.Scene(*req.ImageIndex)
		if !ok {
			return nil, status.Errorf(codes.NotFound, "scene %d is not in the corpus", *req.ImageIndex)
		}
		sc = found
	default:
		return nil, status.Error(codes.InvalidArgument, "request names no scene")
	}

	out, err := interpreter.Execute(req.Program, sc)
	if err != nil {
		return nil, statusFor(err)
	}
	answer, err := out.MarshalJSON()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toResponse(ExecuteResponse{Answer: answer, AnswerType: interpreter.AnswerType(answer)})
}

// #endregion execute

// #region instantiate
// Instantiate grounds a template once, retrying until accepted or the try
// budget runs out. The call deadline, if any, also bounds the retries.
func (s *Server) Instantiate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req InstantiateRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := req.Template.Validate(); err != nil {
		return nil, statusFor(err)
	}

	budget := orchestrator.Budget{MaxTries: req.MaxTries}
	if budget.MaxTries <= 0 {
		budget.MaxTries = s.maxTries
	}
	if dl, ok := ctx.Deadline(); ok {
		budget.Deadline = dl
	}
	ref := orchestrator.TemplateRef{Class: req.Class, Index: 0}

	s.mu.Lock()
	out, err := s.orch.Instantiate(ctx, ref, req.Template, budget)
	s.mu.Unlock()
	if err != nil {
		return nil, statusFor(err)
	}

	resp := InstantiateResponse{Attempts: out.Attempts, Reason: string(out.Reason)}
	if out.Kind == orchestrator.OutcomeAccepted {
		qs, err := assemble.Postprocess([]orchestrator.Candidate{out.Candidate}, s.corpus.Info.Get("split"), req.Class, 0)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		resp.Accepted = true
		resp.Question = &qs[0]
	}
	s.logger.Debug("instantiate",
		zap.String("class", req.Class),
		zap.Bool("accepted", resp.Accepted),
		zap.Int("attempts", resp.Attempts))
	return toResponse(resp)
}

// #endregion instantiate

// #region serve
// Serve listens on addr and serves the Generator service until ctx is done.
func Serve(ctx context.Context, addr string, srv GeneratorServer, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ServeListener(ctx, lis, srv, logger)
}

// ServeListener serves on an existing listener and stops gracefully when
// ctx is done.
func ServeListener(ctx context.Context, lis net.Listener, srv GeneratorServer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	gs := grpc.NewServer()
	RegisterGeneratorServer(gs, srv)
	reflection.Register(gs)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", zap.String("service", ServiceName), zap.String("addr", lis.Addr().String()))
		errCh <- gs.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		gs.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	}
}

// #endregion serve

// #region helpers
func toResponse(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// statusFor maps engine errors onto gRPC codes.
func statusFor(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, program.ErrMalformedTemplate),
		errors.Is(err, program.ErrUnknownNodeType),
		errors.Is(err, program.ErrInvalidProgram),
		errors.Is(err, grounding.ErrStructural),
		errors.Is(err, interpreter.ErrUnknownOperation),
		errors.Is(err, interpreter.ErrArity),
		errors.Is(err, interpreter.ErrTypeMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion helpers
