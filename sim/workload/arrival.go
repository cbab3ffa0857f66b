package workload

// ArrivalProcess produces successive inter-arrival gaps.
// Gaps are drawn with the configured mean ta and then scaled by the rate
// profile evaluated at the current time; with ConstantProfile and the
// exponential sampler this is a Poisson process of rate 1/ta.
type ArrivalProcess struct {
	gaps    Sampler
	profile RateProfile
}

// NewArrivalProcess combines a gap sampler with a rate profile.
// A nil profile means ConstantProfile.
func NewArrivalProcess(gaps Sampler, profile RateProfile) *ArrivalProcess {
	if profile == nil {
		profile = ConstantProfile{}
	}
	return &ArrivalProcess{gaps: gaps, profile: profile}
}

// NextGap returns the gap to the arrival after the one at now.
func (a *ArrivalProcess) NextGap(now float64) float64 {
	return max(a.gaps.Sample()*a.profile.Factor(now), MinDuration)
}

// MeanTA returns the effective mean inter-arrival time at now.
func (a *ArrivalProcess) MeanTA(now float64) float64 {
	return a.gaps.Mean() * a.profile.Factor(now)
}
