/*
Package rpc implements the daemon's wire protocol: a 4-byte big-endian
length-prefixed framing layer carrying JSON-encoded, version-stamped
request/response envelopes over the domain socket.

	┌─────────── frame ───────────┐
	│ length (u32 BE) │ payload … │
	└─────────────────┴───────────┘
	                     payload = [ version (u32 BE) | JSON envelope ]

A frame whose declared length exceeds MaxFrameSize is rejected before
any buffer proportional to that length is allocated — ReadFrame checks
the header against the cap before calling io.ReadFull. JSON behind the
fixed framing layer keeps the payload schema versioned and
forward-compatible (unknown fields are ignored) without a codegen step.

Every request carries a client-issued monotonic id; every response
echoes it. Responses may be written out of request order — the id is
how a client correlates them.
*/
package rpc
