package client

import "github.com/pkg/errors"

var (
	ErrUsage         = errors.New("usage")
	ErrUnknownTarget = errors.New("unknown server")
	// ErrTimeout is a transport fault: no answer within the request timeout.
	ErrTimeout = errors.New("timed out")
	// ErrRejected is a server's explicit refusal under timestamp ordering.
	ErrRejected      = errors.New("rejected")
	ErrNoTransaction = errors.New("no transaction in progress")
	ErrTxnInProgress = errors.New("transaction already in progress")
	ErrCommitAborted = errors.New("commit aborted")
)
