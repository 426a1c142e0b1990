/*
Package backend defines the contract the daemon imposes on native
package sources: the Backend interface only. Concrete integrations with
Arch's ALPM or Debian's APT are external collaborators outside this
module's scope; this package ships two reference implementations that
satisfy the contract without depending on either system package
manager's native libraries:

  - ExecBackend: shells a configurable command set through
    exec.CommandContext with a timeout. Suitable for wrapping a real
    pacman/apt/dpkg invocation.
  - FixtureBackend: an in-memory backend over a fixed package list, used
    by the daemon's own tests and by pkg/index's tests.

	┌──────────────────── BACKEND CONTRACT ──────────────────────┐
	│  Backend                                                    │
	│    Snapshot()  -> IndexSource (packages + fingerprint)       │
	│    Info(name)  -> types.Package, ok                         │
	│    Updates()   -> []types.UpdateCandidate                    │
	│    ExplicitInstalled() / Orphans() -> []string                │
	│    Install/Remove/ApplyAllUpdates -> exit status (mutating,   │
	│      executed with the invoking user's own privileges,        │
	│      elevated outside the daemon process)                     │
	└──────────────────────────────────────────────────────────────┘
*/
package backend
