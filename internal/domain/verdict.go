package domain

// HealthVerdict is the outcome of one health probe. Every probe failure
// mode collapses into an unhealthy verdict with a reason; probes never
// surface errors to the reconciliation loop.
type HealthVerdict struct {
	Healthy bool
	Reason  string
}

// HealthyVerdict reports a passing probe.
func HealthyVerdict() HealthVerdict {
	return HealthVerdict{Healthy: true}
}

// UnhealthyVerdict reports a failing probe with a diagnostic reason.
func UnhealthyVerdict(reason string) HealthVerdict {
	return HealthVerdict{Reason: reason}
}

func (v HealthVerdict) String() string {
	if v.Healthy {
		return "healthy"
	}
	if v.Reason == "" {
		return "unhealthy"
	}
	return "unhealthy: " + v.Reason
}
