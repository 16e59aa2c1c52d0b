package resilience

import "log/slog"

// Init builds a pipeline collaborator with build and substitutes stub when
// construction fails. The boolean reports whether the stub was substituted,
// so the caller can mark its session as degraded instead of failing startup.
// Stub output must be clearly recognizable as placeholder content; degraded
// mode is never allowed to be indistinguishable from full operation.
func Init[T any](name string, build func() (T, error), stub T) (T, bool) {
	v, err := build()
	if err != nil {
		slog.Warn("provider initialization failed, substituting stub",
			"provider", name, "error", err)
		return stub, true
	}
	return v, false
}
