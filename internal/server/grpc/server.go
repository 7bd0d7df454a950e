// Package grpc runs the gRPC listener. It serves the standard health and
// reflection services and maps errorbank errors onto gRPC status codes.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/tabline/internal/config"
	"github.com/Additional-Code/tabline/pkg/errorbank"
)

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(health.NewServer),
	fx.Provide(NewServer),
	fx.Invoke(Run),
)

// NewServer builds a gRPC server with logging and error-mapping interceptors
// and registers the health and reflection services.
func NewServer(logger *zap.Logger, cfg config.Config, healthSrv *health.Server) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryErrorInterceptor(logger)),
		grpc.ChainStreamInterceptor(StreamErrorInterceptor(logger)),
	)
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus(cfg.Observability.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(server)
	return server
}

// ToStatus converts handler errors into gRPC status errors. Errors that
// already carry a status pass through; anything else goes through errorbank
// so infrastructure causes never reach the client.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		var appErr *errorbank.AppError
		if !errors.As(err, &appErr) {
			return err
		}
	}
	appErr := errorbank.From(err)
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

// UnaryErrorInterceptor logs each call and maps its error.
func UnaryErrorInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, "grpc unary call finished", info.FullMethod, time.Since(start), err)
		return resp, ToStatus(err)
	}
}

// StreamErrorInterceptor logs each stream and maps its error.
func StreamErrorInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, "grpc stream call finished", info.FullMethod, time.Since(start), err)
		return ToStatus(err)
	}
}

func logCall(logger *zap.Logger, msg, method string, d time.Duration, err error) {
	fields := []zap.Field{zap.String("method", method), zap.Duration("duration", d)}
	if err != nil {
		logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Debug(msg, fields...)
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, healthSrv *health.Server, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error("grpc server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			healthSrv.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
