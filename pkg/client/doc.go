/*
Package client is a minimal synchronous client over the domain-socket
wire protocol (pkg/rpc): dial, frame, decode. It exists for the
daemon's own integration tests and for programmatic callers; cmd/omgd's
doctor subcommand does not use it. A full CLI front-end is out of scope
here.
*/
package client
