package txnpb

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMarshalKeepsReadResultFields(t *testing.T) {
	in := NewReadResult(true, "", true)
	in.ID = "c0"
	in.InResponseTo = "r0"
	in.Origin = "A"
	in.Destination = "client-1"

	var out Envelope
	require.NoError(t, Unmarshal(Marshal(in), &out))
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}
	// An empty but present value must survive the trip.
	assert.True(t, out.Found)
	assert.Equal(t, "", out.Value)
}

func TestMarshalNegativeTxnID(t *testing.T) {
	in := NewTryCommit(-1)

	var out Envelope
	require.NoError(t, Unmarshal(Marshal(in), &out))
	assert.Equal(t, int64(-1), out.TxnID)
	assert.Equal(t, KindTryCommit, out.Kind)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Marshal(NewWrite(7, "x", "42"))
	b = protowire.AppendTag(b, 99, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 12345)
	b = protowire.AppendTag(b, 98, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")

	var out Envelope
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, Envelope{Kind: KindWrite, TxnID: 7, Key: "x", Value: "42"}, out)
}

func TestUnmarshalTruncated(t *testing.T) {
	b := Marshal(NewWrite(7, "key", "value"))

	var out Envelope
	assert.Error(t, Unmarshal(b[:len(b)-2], &out))
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	first := NewWrite(1, "x", "1")
	first.ID = "a"
	second := NewDoCommit(1)
	second.ID = "b"
	require.NoError(t, WriteFrame(&buf, first))
	require.NoError(t, WriteFrame(&buf, second))

	r := bufio.NewReader(&buf)
	got, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = ReadFrame(r)
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameTooLarge(t *testing.T) {
	b := protowire.AppendVarint(nil, MaxFrameSize+1)

	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(b)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrFrameTooLarge.Error())
}

func TestWriteFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, NewWrite(1, "big", strings.Repeat("x", MaxFrameSize)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFrameTooLarge), "got %v", err)
	assert.Zero(t, buf.Len(), "nothing may be written for a refused frame")

	require.NoError(t, WriteFrame(&buf, NewWrite(1, "small", "v")))
	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "small", got.Key)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "TryCommitResult", KindTryCommitResult.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
