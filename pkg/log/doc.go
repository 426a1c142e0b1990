/*
Package log provides structured logging for the omg daemon using zerolog.

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│  Global Logger (zerolog.Logger)                          │
	│    initialized once via log.Init()                       │
	│  Config: Level, JSONOutput, Output                       │
	│  Component loggers: WithComponent("pkv"), ("index"), ... │
	└───────────────────────────────────────────────────────────┘

Every long-lived component (PKV, PTC, backend adapters, the index, the
status aggregator, the daemon server, handlers) logs through a
log.WithComponent("...") child logger rather than the bare stdlib log
package, so every line carries a component field for filtering.
*/
package log
