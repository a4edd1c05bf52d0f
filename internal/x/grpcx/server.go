package grpcx

import (
	"context"
	"net"

	"google.golang.org/grpc"
)

// Serve accepts connections on lis until ctx is canceled or s fails.
//
// s is stopped when ctx is canceled, in which case ctx.Err() is returned. The
// caller must not stop s itself.
func Serve(ctx context.Context, lis net.Listener, s *grpc.Server) error {
	stopped := make(chan struct{})
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
			close(stopped)
		case <-done:
		}
	}()

	if err := s.Serve(lis); err != nil {
		return err
	}

	// Serve() only returns nil after Stop() is called.
	<-stopped
	return ctx.Err()
}
