// Package txnpb defines the message envelope exchanged between clients,
// the coordinator and storage servers, and its wire encoding.
package txnpb

import "fmt"

// Kind identifies what an Envelope carries.
type Kind int32

const (
	KindUnknown Kind = iota
	KindRequestTxnID
	KindNewTxnID
	KindWrite
	KindWriteResult
	KindRead
	KindReadResult
	KindTryCommit
	KindTryCommitResult
	KindDoCommit
	KindAbort
)

var kindNames = map[Kind]string{
	KindUnknown:         "Unknown",
	KindRequestTxnID:    "RequestTxnID",
	KindNewTxnID:        "NewTxnID",
	KindWrite:           "Write",
	KindWriteResult:     "WriteResult",
	KindRead:            "Read",
	KindReadResult:      "ReadResult",
	KindTryCommit:       "TryCommit",
	KindTryCommitResult: "TryCommitResult",
	KindDoCommit:        "DoCommit",
	KindAbort:           "Abort",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

// Envelope is a single protocol message. Only the fields relevant to Kind
// are set; the rest keep their zero value.
type Envelope struct {
	Kind Kind
	// ID correlates a request with its response.
	ID           string
	InResponseTo string
	Origin       string
	Destination  string

	TxnID   int64
	Key     string
	Value   string
	Success bool
	// Found distinguishes a missing key from an empty value in a ReadResult.
	Found bool
}

func (e *Envelope) String() string {
	switch e.Kind {
	case KindNewTxnID:
		return fmt.Sprintf("%s{id=%s re=%s txn=%d}", e.Kind, e.ID, e.InResponseTo, e.TxnID)
	case KindWrite:
		return fmt.Sprintf("%s{id=%s txn=%d key=%s value=%q}", e.Kind, e.ID, e.TxnID, e.Key, e.Value)
	case KindRead:
		return fmt.Sprintf("%s{id=%s txn=%d key=%s}", e.Kind, e.ID, e.TxnID, e.Key)
	case KindReadResult:
		return fmt.Sprintf("%s{id=%s re=%s success=%t found=%t value=%q}", e.Kind, e.ID, e.InResponseTo, e.Success, e.Found, e.Value)
	case KindWriteResult, KindTryCommitResult:
		return fmt.Sprintf("%s{id=%s re=%s success=%t}", e.Kind, e.ID, e.InResponseTo, e.Success)
	case KindTryCommit, KindDoCommit, KindAbort:
		return fmt.Sprintf("%s{id=%s txn=%d}", e.Kind, e.ID, e.TxnID)
	default:
		return fmt.Sprintf("%s{id=%s origin=%s}", e.Kind, e.ID, e.Origin)
	}
}

func NewRequestTxnID() *Envelope {
	return &Envelope{Kind: KindRequestTxnID}
}

func NewTxnIDResponse(txnID int64) *Envelope {
	return &Envelope{Kind: KindNewTxnID, TxnID: txnID}
}

func NewWrite(txnID int64, key, value string) *Envelope {
	return &Envelope{Kind: KindWrite, TxnID: txnID, Key: key, Value: value}
}

func NewWriteResult(success bool) *Envelope {
	return &Envelope{Kind: KindWriteResult, Success: success}
}

func NewRead(txnID int64, key string) *Envelope {
	return &Envelope{Kind: KindRead, TxnID: txnID, Key: key}
}

func NewReadResult(success bool, value string, found bool) *Envelope {
	return &Envelope{Kind: KindReadResult, Success: success, Value: value, Found: found}
}

func NewTryCommit(txnID int64) *Envelope {
	return &Envelope{Kind: KindTryCommit, TxnID: txnID}
}

func NewTryCommitResult(success bool) *Envelope {
	return &Envelope{Kind: KindTryCommitResult, Success: success}
}

func NewDoCommit(txnID int64) *Envelope {
	return &Envelope{Kind: KindDoCommit, TxnID: txnID}
}

func NewAbort(txnID int64) *Envelope {
	return &Envelope{Kind: KindAbort, TxnID: txnID}
}
