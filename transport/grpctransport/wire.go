package grpctransport

import (
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/poller"
)

const (
	relayService      = "courier.v1.Relay"
	fileServerService = "courier.v1.FileServer"
	openGroupService  = "courier.v1.OpenGroup"
)

type sendRequest struct {
	Message     message.Message
	Destination message.Destination
}

type sendResponse struct{}

type uploadRequest struct {
	AttachmentID string
	Data         []byte
	Server       message.Server
}

type uploadResponse struct {
	Reference message.Reference
}

type pollRequest struct {
	Group message.OpenGroup
	Since uint64
}

type pollResponse struct {
	Posts []poller.Post
}

type infoRequest struct {
	Server  string
	Channel uint64
}

type infoResponse struct {
	DisplayName string
}
