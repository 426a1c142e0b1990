package status

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc64"

	"github.com/cuemby/omg/pkg/types"
)

// SchemaVersion is the current FastStatus wire format version.
const SchemaVersion = 1

// backendTagWireLen is the fixed width of the BackendTag field in the
// published file; longer tags are truncated, shorter ones zero-padded.
const backendTagWireLen = 8

// WireSize is the total fixed size of an encoded FastStatus file, in
// bytes: the fixed [0,64) data region plus an 8-byte trailing CRC64.
const WireSize = 64 + 8

var crcTable = crc64.MakeTable(crc64.ISO)

const flagBackendStale = 1 << 0

// encode renders fs as the fixed little-endian layout published at the
// FastStatus path. The trailing 8 bytes are a CRC64 over bytes [0,64).
func encode(fs types.FastStatus) []byte {
	buf := make([]byte, WireSize)

	binary.LittleEndian.PutUint32(buf[0:4], fs.SchemaVersion)

	var flags uint32
	if fs.BackendStale {
		flags |= flagBackendStale
	}
	binary.LittleEndian.PutUint32(buf[4:8], flags)

	binary.LittleEndian.PutUint64(buf[8:16], fs.GeneratedAtNanos)
	binary.LittleEndian.PutUint64(buf[16:24], fs.TotalCount)
	binary.LittleEndian.PutUint64(buf[24:32], fs.InstalledCount)
	binary.LittleEndian.PutUint64(buf[32:40], fs.ExplicitCount)
	binary.LittleEndian.PutUint64(buf[40:48], fs.UpdatesCount)
	binary.LittleEndian.PutUint64(buf[48:56], fs.OrphanCount)

	copy(buf[56:64], fs.BackendTag)

	sum := crc64.Checksum(buf[0:64], crcTable)
	binary.LittleEndian.PutUint64(buf[64:72], sum)

	return buf
}

// decode parses a file previously produced by encode, verifying its
// CRC64 trailer. A torn or corrupt file (short read, checksum
// mismatch) is reported as an error rather than partially interpreted.
func decode(data []byte) (types.FastStatus, error) {
	if len(data) != WireSize {
		return types.FastStatus{}, fmt.Errorf("status: wire size mismatch: got %d want %d", len(data), WireSize)
	}

	want := binary.LittleEndian.Uint64(data[64:72])
	got := crc64.Checksum(data[0:64], crcTable)
	if want != got {
		return types.FastStatus{}, fmt.Errorf("status: checksum mismatch, file is torn or corrupt")
	}

	var fs types.FastStatus
	fs.SchemaVersion = binary.LittleEndian.Uint32(data[0:4])
	flags := binary.LittleEndian.Uint32(data[4:8])
	fs.BackendStale = flags&flagBackendStale != 0
	fs.GeneratedAtNanos = binary.LittleEndian.Uint64(data[8:16])
	fs.TotalCount = binary.LittleEndian.Uint64(data[16:24])
	fs.InstalledCount = binary.LittleEndian.Uint64(data[24:32])
	fs.ExplicitCount = binary.LittleEndian.Uint64(data[32:40])
	fs.UpdatesCount = binary.LittleEndian.Uint64(data[40:48])
	fs.OrphanCount = binary.LittleEndian.Uint64(data[48:56])
	fs.BackendTag = string(bytes.TrimRight(data[56:64], "\x00"))

	return fs, nil
}
