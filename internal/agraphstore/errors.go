package agraphstore

import "github.com/pkg/errors"

// Sentinel errors forming the taxonomy every component reports through.
// Wrap them with errors.Wrap/Wrapf at each boundary crossing so a "%+v"
// format captures the originating stack trace.
var (
	ErrGraphNotFound         = errors.New("graph: not found")
	ErrNodeNotFound          = errors.New("graph: node not found")
	ErrNodeNotCreated        = errors.New("graph: node not created")
	ErrNodeNotDeleted        = errors.New("graph: node not deleted")
	ErrConflictDuplicateNode = errors.New("graph: duplicate node key")
	ErrEdgeNotFound          = errors.New("graph: edge not found")
	ErrEdgeNotCreated        = errors.New("graph: edge not created")
	ErrEdgeNotDeleted        = errors.New("graph: edge not deleted")
	ErrConflictDuplicateEdge = errors.New("graph: duplicate edge")
	ErrFileSaveError         = errors.New("store: save failed")
	ErrFileLoadError         = errors.New("store: load failed")
	ErrFileDecodeError       = errors.New("store: decode failed")
	ErrWriteLogError         = errors.New("log: write failed")
	ErrParseError            = errors.New("parse error")
	ErrSerde                 = errors.New("encode/decode error")
	ErrClientError           = errors.New("rpc client error")
	ErrSyncError             = errors.New("sync error")
	ErrMailboxError          = errors.New("mailbox error")
)
