// Package grpc exposes the link service over gRPC.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/atinyakov/tinylink/internal/app/service"
	"github.com/atinyakov/tinylink/internal/errx"
	"github.com/atinyakov/tinylink/internal/intercepters"
	"github.com/atinyakov/tinylink/internal/middleware"
	"github.com/atinyakov/tinylink/internal/models"
)

// Server wraps the gRPC server and dependencies.
type Server struct {
	grpcServer *grpc.Server
	port       int
	logger     *zap.Logger
}

// New creates a gRPC server for links. ResolveLink is public; the other
// methods need a bearer token.
func New(logger *zap.Logger, links service.LinkServiceIface, auth service.TokenParser, port int) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(),
			logging.UnaryServerInterceptor(intercepters.InterceptorLogger(logger)),
			intercepters.WithJWT(auth, ResolveLinkMethod),
		),
	)

	s.RegisterService(&LinkServiceDesc, &linkServer{
		service: links,
		logger:  logger,
	})

	return &Server{
		grpcServer: s,
		port:       port,
		logger:     logger,
	}
}

// Start listens on the configured port and serves until stopped.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.logger.Error("gRPC server failed to listen", zap.Error(err))
		return err
	}

	return s.Serve(lis)
}

// Serve accepts connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop shuts down the server gracefully.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

const callTimeout = 3 * time.Second

type linkServer struct {
	service service.LinkServiceIface
	logger  *zap.Logger
}

func (s *linkServer) CreateLink(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := ctx.Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user ID missing in context")
	}

	fields := req.GetFields()
	target := fields["target"].GetStringValue()
	if target == "" {
		return nil, status.Error(codes.InvalidArgument, "target is required")
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	link, err := s.service.Create(ctx, userID, models.CreateLinkRequest{
		Target: target,
		Code:   fields["code"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]any{
		"code":        link.Code,
		"target":      link.Target,
		"shortUrl":    link.ShortURL,
		"totalClicks": float64(link.TotalClicks),
		"createdAt":   link.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// ResolveLink mirrors the HTTP redirect: a failed click increment is logged
// and the target is still returned.
func (s *linkServer) ResolveLink(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	target, err := s.service.Resolve(ctx, req.GetValue())
	if err != nil {
		if errx.KindOf(err) == errx.Transient && target != "" {
			s.logger.Warn("Click not recorded", zap.String("code", req.GetValue()), zap.Error(err))
			return wrapperspb.String(target), nil
		}
		if k := errx.KindOf(err); k == errx.InvalidCode || k == errx.NotFound {
			return nil, status.Error(codes.NotFound, "not found")
		}
		return nil, toStatus(err)
	}

	return wrapperspb.String(target), nil
}

func (s *linkServer) DeleteLink(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	userID, ok := ctx.Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		return nil, status.Error(codes.Unauthenticated, "user ID missing in context")
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if err := s.service.Delete(ctx, userID, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus maps an error kind to its gRPC status code.
func toStatus(err error) error {
	var code codes.Code
	switch errx.KindOf(err) {
	case errx.InvalidTarget, errx.InvalidCode, errx.Invalid:
		code = codes.InvalidArgument
	case errx.CodeConflict, errx.EmailTaken:
		code = codes.AlreadyExists
	case errx.NotFound:
		code = codes.NotFound
	case errx.Forbidden:
		code = codes.PermissionDenied
	case errx.Unauthorized:
		code = codes.Unauthenticated
	case errx.Transient:
		return status.Error(codes.Unavailable, "temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
