/*
Package daemon implements the daemon server: the domain-socket
listener, its connection/request concurrency model, and the
startup/drain lifecycle.

	Start: acquire + write pidfile → open PKV → load/build IndexSnapshot
	       → SAG.Start → bind socket (signal handlers are installed by
	       cmd/omgd, not Start)
	Run:   accept loop, one goroutine per connection, up to
	       DefaultMaxConnections concurrent connections
	Conn:  read-loop decodes frames, dispatches each request to a
	       bounded task pool (MaxHandlersPerConn), one goroutine per
	       decoded request
	Drain: SIGTERM/SIGINT/Shutdown → stop accepting → wait up to
	       cfg.DrainDeadline for in-flight handlers → force-close →
	       remove socket + pidfile

A second instance that cannot acquire the pidfile's exclusive flock
exits immediately with ErrAlreadyRunning (exit code 2) rather than
racing the running daemon for the socket.
*/
package daemon
