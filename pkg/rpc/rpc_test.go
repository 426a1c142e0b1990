package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cuemby/omg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello frame")
	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_RejectsOversizeWithoutAllocating(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 32<<20) // 32 MiB declared, no body follows

	_, err := ReadFrame(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrame_RejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len())
}

func TestCodec_RequestRoundTrip(t *testing.T) {
	req := Request{
		ID:     42,
		Kind:   KindSearch,
		Search: &SearchRequest{Query: "fire", Limit: 10},
	}

	payload, err := EncodeRequest(req)
	require.NoError(t, err)

	got, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, req, *got)
}

func TestCodec_DecodeRequest_RejectsVersionMismatch(t *testing.T) {
	payload, err := EncodeRequest(Request{ID: 1, Kind: KindStatus})
	require.NoError(t, err)
	payload[3] = 0xFF // corrupt the version field

	_, err = DecodeRequest(payload)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestCodec_ResponseRoundTrip(t *testing.T) {
	resp := Response{
		ID:   7,
		Kind: KindInfo,
		Info: &InfoResponse{Package: types.Package{Name: "bash", Version: "5.2", Installed: true}},
	}

	payload, err := EncodeResponse(resp)
	require.NoError(t, err)

	got, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, resp, *got)
}

func TestCodec_ErrorResponse(t *testing.T) {
	resp := ErrorResponse(9, KindInfo, NewNotFound("nope-zzz-xyz"))
	payload, err := EncodeResponse(resp)
	require.NoError(t, err)

	got, err := DecodeResponse(payload)
	require.NoError(t, err)
	require.NotNil(t, got.Error)
	assert.Equal(t, KindNotFound, got.Error.Kind)
}

func TestBatch_DecodesNestedRequests(t *testing.T) {
	batch := Request{
		ID:   1,
		Kind: KindBatch,
		Batch: &BatchRequest{Requests: []Request{
			{ID: 2, Kind: KindInfo, Info: &InfoRequest{Name: "bash"}},
			{ID: 3, Kind: KindInfo, Info: &InfoRequest{Name: "nope"}},
		}},
	}
	payload, err := EncodeRequest(batch)
	require.NoError(t, err)

	got, err := DecodeRequest(payload)
	require.NoError(t, err)
	require.Len(t, got.Batch.Requests, 2)
	assert.Equal(t, "bash", got.Batch.Requests[0].Info.Name)
}
