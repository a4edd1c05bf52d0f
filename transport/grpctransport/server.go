package grpctransport

import (
	"context"
	"errors"

	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/courier/transport"
	"github.com/dogmatiq/courier/upload"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server is the set of implementations that back the courier gRPC services.
//
// A service is only registered if all of its implementations are non-nil.
type Server struct {
	Transport  transport.Transport
	FileServer upload.FileServer
	Fetcher    poller.Fetcher
	Lookup     poller.Lookup
}

// Register registers the services with s.
//
// s must be constructed with the option returned by ServerOption().
func (srv *Server) Register(s *grpc.Server) {
	if srv.Transport != nil {
		s.RegisterService(
			serviceDesc(
				relayService,
				unary("Send", srv.send),
			),
			nil,
		)
	}

	if srv.FileServer != nil {
		s.RegisterService(
			serviceDesc(
				fileServerService,
				unary("Upload", srv.upload),
			),
			nil,
		)
	}

	if srv.Fetcher != nil && srv.Lookup != nil {
		s.RegisterService(
			serviceDesc(
				openGroupService,
				unary("Poll", srv.poll),
				unary("Info", srv.info),
			),
			nil,
		)
	}
}

func (srv *Server) send(ctx context.Context, req *sendRequest) (*sendResponse, error) {
	err := srv.Transport.Send(ctx, req.Message, req.Destination)
	return &sendResponse{}, err
}

func (srv *Server) upload(ctx context.Context, req *uploadRequest) (*uploadResponse, error) {
	ref, err := srv.FileServer.Upload(ctx, req.Data, req.AttachmentID, req.Server)
	return &uploadResponse{ref}, err
}

func (srv *Server) poll(ctx context.Context, req *pollRequest) (*pollResponse, error) {
	posts, err := srv.Fetcher.Poll(ctx, req.Group, req.Since)
	return &pollResponse{posts}, err
}

func (srv *Server) info(ctx context.Context, req *infoRequest) (*infoResponse, error) {
	name, err := srv.Lookup.DisplayName(ctx, req.Server, req.Channel)
	return &infoResponse{name}, err
}

func serviceDesc(name string, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: name,
		HandlerType: (*interface{})(nil),
		Methods:     methods,
	}
}

// unary returns the description of a unary method that is handled by fn.
func unary[Req, Res any](
	name string,
	fn func(context.Context, *Req) (*Res, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(
			_ interface{},
			ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor,
		) (interface{}, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				res, err := fn(ctx, req.(*Req))
				if err != nil {
					return nil, toStatus(err)
				}
				return res, nil
			}

			if interceptor == nil {
				return handler(ctx, req)
			}

			method, _ := grpc.Method(ctx)

			return interceptor(
				ctx,
				req,
				&grpc.UnaryServerInfo{
					FullMethod: method,
				},
				handler,
			)
		},
	}
}

// toStatus converts err to a gRPC status error.
//
// Errors marked with transport.Fatal() become FailedPrecondition errors. All
// other errors become Unavailable errors, so that the client retries them.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case transport.IsFatal(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
