package fixtures

import (
	"context"
	"sync/atomic"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/upload"
)

// FileServerStub is a test implementation of the upload.FileServer interface.
type FileServerStub struct {
	upload.FileServer

	UploadFunc func(context.Context, []byte, string, message.Server) (message.Reference, error)

	calls uint32
}

// Upload uploads data to s.
//
// If neither UploadFunc nor FileServer is set, it returns a reference derived
// from the server URL and attachment ID.
func (fs *FileServerStub) Upload(
	ctx context.Context,
	data []byte,
	id string,
	s message.Server,
) (message.Reference, error) {
	atomic.AddUint32(&fs.calls, 1)

	if fs.UploadFunc != nil {
		return fs.UploadFunc(ctx, data, id, s)
	}

	if fs.FileServer != nil {
		return fs.FileServer.Upload(ctx, data, id, s)
	}

	return message.Reference(s.URL + "/" + id), nil
}

// Calls returns the number of times Upload() has been called.
func (fs *FileServerStub) Calls() int {
	return int(atomic.LoadUint32(&fs.calls))
}
