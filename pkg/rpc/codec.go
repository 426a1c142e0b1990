package rpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the first four bytes of every frame payload. A
// mismatch is a ProtocolError, not a decode failure on the JSON body.
const ProtocolVersion uint32 = 1

const versionHeaderSize = 4

// ErrVersionMismatch is returned by DecodeRequest when a payload's
// leading version field does not match ProtocolVersion.
var ErrVersionMismatch = &Error{Kind: KindProtocolError, Reason: "version_mismatch"}

// DecodeRequest parses a raw frame payload (as returned by ReadFrame)
// into a Request, after checking the leading protocol version.
func DecodeRequest(payload []byte) (*Request, error) {
	if len(payload) < versionHeaderSize {
		return nil, &Error{Kind: KindProtocolError, Reason: "short_payload"}
	}
	version := binary.BigEndian.Uint32(payload[:versionHeaderSize])
	if version != ProtocolVersion {
		return nil, ErrVersionMismatch
	}

	var req Request
	if err := json.Unmarshal(payload[versionHeaderSize:], &req); err != nil {
		return nil, &Error{Kind: KindProtocolError, Reason: "malformed_body", Detail: err.Error()}
	}
	return &req, nil
}

// EncodeResponse renders resp as a version-stamped frame payload,
// ready for WriteFrame.
func EncodeResponse(resp Response) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode response: %w", err)
	}

	out := make([]byte, versionHeaderSize+len(body))
	binary.BigEndian.PutUint32(out[:versionHeaderSize], ProtocolVersion)
	copy(out[versionHeaderSize:], body)
	return out, nil
}

// EncodeRequest renders req as a version-stamped frame payload; used
// by pkg/client and by tests that exercise the codec round-trip.
func EncodeRequest(req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode request: %w", err)
	}
	out := make([]byte, versionHeaderSize+len(body))
	binary.BigEndian.PutUint32(out[:versionHeaderSize], ProtocolVersion)
	copy(out[versionHeaderSize:], body)
	return out, nil
}

// DecodeResponse parses a raw frame payload into a Response, checking
// the leading protocol version. Used by pkg/client.
func DecodeResponse(payload []byte) (*Response, error) {
	if len(payload) < versionHeaderSize {
		return nil, &Error{Kind: KindProtocolError, Reason: "short_payload"}
	}
	version := binary.BigEndian.Uint32(payload[:versionHeaderSize])
	if version != ProtocolVersion {
		return nil, ErrVersionMismatch
	}
	var resp Response
	if err := json.Unmarshal(payload[versionHeaderSize:], &resp); err != nil {
		return nil, &Error{Kind: KindProtocolError, Reason: "malformed_body", Detail: err.Error()}
	}
	return &resp, nil
}
