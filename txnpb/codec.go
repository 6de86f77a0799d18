package txnpb

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Envelope wire format.
const (
	fieldKind         protowire.Number = 1
	fieldID           protowire.Number = 2
	fieldInResponseTo protowire.Number = 3
	fieldOrigin       protowire.Number = 4
	fieldDestination  protowire.Number = 5
	fieldTxnID        protowire.Number = 6
	fieldKey          protowire.Number = 7
	fieldValue        protowire.Number = 8
	fieldSuccess      protowire.Number = 9
	fieldFound        protowire.Number = 10
)

// MaxFrameSize bounds a single encoded envelope.
const MaxFrameSize = 4 << 20

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Marshal encodes e in protobuf wire format. Zero-valued fields are omitted.
func Marshal(e *Envelope) []byte {
	var b []byte
	b = appendVarint(b, fieldKind, uint64(e.Kind))
	b = appendString(b, fieldID, e.ID)
	b = appendString(b, fieldInResponseTo, e.InResponseTo)
	b = appendString(b, fieldOrigin, e.Origin)
	b = appendString(b, fieldDestination, e.Destination)
	b = appendVarint(b, fieldTxnID, protowire.EncodeZigZag(e.TxnID))
	b = appendString(b, fieldKey, e.Key)
	b = appendString(b, fieldValue, e.Value)
	b = appendVarint(b, fieldSuccess, protowire.EncodeBool(e.Success))
	b = appendVarint(b, fieldFound, protowire.EncodeBool(e.Found))
	return b
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes b into e. Unknown fields are skipped.
func Unmarshal(b []byte, e *Envelope) error {
	*e = Envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "decode tag")
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return errors.Wrapf(protowire.ParseError(n), "decode field %d", num)
			}
			b = b[n:]
			switch num {
			case fieldKind:
				e.Kind = Kind(v)
			case fieldTxnID:
				e.TxnID = protowire.DecodeZigZag(v)
			case fieldSuccess:
				e.Success = protowire.DecodeBool(v)
			case fieldFound:
				e.Found = protowire.DecodeBool(v)
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return errors.Wrapf(protowire.ParseError(n), "decode field %d", num)
			}
			b = b[n:]
			switch num {
			case fieldID:
				e.ID = v
			case fieldInResponseTo:
				e.InResponseTo = v
			case fieldOrigin:
				e.Origin = v
			case fieldDestination:
				e.Destination = v
			case fieldKey:
				e.Key = v
			case fieldValue:
				e.Value = v
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.Wrapf(protowire.ParseError(n), "skip field %d", num)
			}
			b = b[n:]
		}
	}
	return nil
}

// WriteFrame writes e prefixed by its encoded length. Envelopes larger
// than MaxFrameSize are refused before anything reaches w.
func WriteFrame(w io.Writer, e *Envelope) error {
	payload := Marshal(e)
	if len(payload) > MaxFrameSize {
		return errors.Wrapf(ErrFrameTooLarge, "%s of %d bytes", e.Kind, len(payload))
	}
	buf := make([]byte, 0, binary.MaxVarintLen64+len(payload))
	buf = protowire.AppendVarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return errors.Wrapf(err, "write %s", e.Kind)
}

// ReadFrame reads one length-prefixed envelope. A clean end of stream
// before the length prefix is reported as io.EOF.
func ReadFrame(r *bufio.Reader) (*Envelope, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "read frame payload")
	}
	e := &Envelope{}
	if err := Unmarshal(payload, e); err != nil {
		return nil, err
	}
	return e, nil
}
