package engine

// killer terminates a process together with its descendants. Kill is the
// fast best-effort variant used for ordinary stops; KillRobust re-checks
// liveness and retries, and is reserved for full shutdown where orphaned
// children would outlive the host. Platform files provide the single
// implementation selected at build time.
type killer interface {
	Kill(pid int) error
	KillRobust(pid int) error
}
