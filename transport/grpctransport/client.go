package grpctransport

import (
	"context"

	"github.com/dogmatiq/courier/internal/x/grpcx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/courier/transport"
	"google.golang.org/grpc"
)

// Client sends messages, uploads attachments and polls open groups using the
// courier gRPC services.
//
// Errors with a gRPC status code of Unavailable, DeadlineExceeded,
// ResourceExhausted or Aborted are marked with transport.Retryable(). All
// other errors are marked with transport.Fatal().
type Client struct {
	// Conn is the connection to the relay.
	Conn grpc.ClientConnInterface
}

// Send delivers m to d.
func (c *Client) Send(
	ctx context.Context,
	m message.Message,
	d message.Destination,
) error {
	return c.invoke(
		ctx,
		relayService, "Send",
		&sendRequest{m, d},
		&sendResponse{},
	)
}

// Upload uploads data to s and returns the server-issued reference.
func (c *Client) Upload(
	ctx context.Context,
	data []byte,
	id string,
	s message.Server,
) (message.Reference, error) {
	res := &uploadResponse{}

	if err := c.invoke(
		ctx,
		fileServerService, "Upload",
		&uploadRequest{id, data, s},
		res,
	); err != nil {
		return "", err
	}

	return res.Reference, nil
}

// Poll returns the posts in g with an ID greater than since.
func (c *Client) Poll(
	ctx context.Context,
	g message.OpenGroup,
	since uint64,
) ([]poller.Post, error) {
	res := &pollResponse{}

	if err := c.invoke(
		ctx,
		openGroupService, "Poll",
		&pollRequest{g, since},
		res,
	); err != nil {
		return nil, err
	}

	return res.Posts, nil
}

// DisplayName returns the human-readable name of an open-group channel.
func (c *Client) DisplayName(
	ctx context.Context,
	server string,
	channel uint64,
) (string, error) {
	res := &infoResponse{}

	if err := c.invoke(
		ctx,
		openGroupService, "Info",
		&infoRequest{server, channel},
		res,
	); err != nil {
		return "", err
	}

	return res.DisplayName, nil
}

func (c *Client) invoke(
	ctx context.Context,
	service, method string,
	req, res interface{},
) error {
	err := c.Conn.Invoke(
		ctx,
		"/"+service+"/"+method,
		req,
		res,
		grpc.ForceCodec(Codec),
	)

	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if grpcx.IsTemporary(err) {
		return transport.Retryable(err)
	}

	return transport.Fatal(err)
}
