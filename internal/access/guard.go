package access

// Decision is the outcome of a single guard.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Guard is one independent authorization predicate over a request.
type Guard[R any] func(R) Decision

// All composes guards in order and stops at the first denial.
func All[R any](guards ...Guard[R]) Guard[R] {
	return func(req R) Decision {
		for _, g := range guards {
			if d := g(req); !d.Allowed {
				return d
			}
		}
		return Allow()
	}
}
