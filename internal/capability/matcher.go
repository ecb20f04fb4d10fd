// Package capability decides whether an agent's capability set
// satisfies a task's requirements.
//
// Capability tags are opaque strings compared by set inclusion. The
// vocabulary is advisory: nothing here validates tag names, so teams can
// introduce new capabilities without touching the coordinator.
package capability

// Satisfies returns true if every required capability is present in the
// held set. An empty required set matches any agent: gating is opt-in,
// tasks that don't declare requirements are claimable by everyone.
func Satisfies(required, held []string) bool {
	if len(required) == 0 {
		return true
	}

	have := make(map[string]struct{}, len(held))
	for _, c := range held {
		have[c] = struct{}{}
	}

	for _, c := range required {
		if _, ok := have[c]; !ok {
			return false
		}
	}
	return true
}
