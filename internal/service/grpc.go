package service

import (
	"google.golang.org/grpc"

	"github.com/and161185/campus-kit/internal/transport/grpcauth"
)

// DialOptions authenticate gRPC calls with the session credential. Calls get the
// bearer token and request id, are renewed through the session Refresher on
// Unauthenticated and retried once, and are logged by method and code. Transport
// credentials are left to the caller.
func (s *Session) DialOptions() []grpc.DialOption {
	log := s.log.Named("grpc")
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(
			grpcauth.LoggingUnary(log),
			grpcauth.UnaryClientInterceptor(s.Creds, s.Refresher, log),
		),
	}
}
