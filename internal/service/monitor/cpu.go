package monitor

import "github.com/WilsonEspinozaAponte/Agente-de-AutoConfiguracion/internal/runtime"

// cpuUtilization derives instantaneous CPU usage from two successive
// cumulative samples, normalized to a percentage of one core scaled by the
// container's CPU allotment: (cpuDelta/systemDelta) * onlineCPUs * 100.
// Zero or negative deltas (counter reset, identical samples) yield 0.
func cpuUtilization(prev, cur runtime.StatsSample) float64 {
	if cur.CPUTotal <= prev.CPUTotal || cur.SystemTotal <= prev.SystemTotal {
		return 0
	}
	cpuDelta := float64(cur.CPUTotal - prev.CPUTotal)
	systemDelta := float64(cur.SystemTotal - prev.SystemTotal)
	cpus := float64(cur.OnlineCPUs)
	if cpus == 0 {
		cpus = 1
	}
	return cpuDelta / systemDelta * cpus * 100
}
