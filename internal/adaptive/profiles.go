package adaptive

import "github.com/coregraph/taskgraph/contracts"

// defaults is one row of profileTable, which mirrors spec §3's
// profile-driven default table: each
// RoutingProfile fills a distinct set of Adaptive field values. A field the
// caller already set explicitly is never overwritten.
type defaults struct {
	minConfidenceToStop float64
	minVoIToEscalate    float64
	maxEscalations      int
	useVoI              bool
	enableGateRetrieval bool
	retrievalTTLSeconds int64
	retrievalMaxEntries int
	scSamples           int
	scMaxTokensPerSample int64
}

var profileTable = map[contracts.RoutingProfile]defaults{
	contracts.ProfileLatency: {
		minConfidenceToStop: 0.6,
		minVoIToEscalate:    0.5,
		maxEscalations:      0,
		useVoI:              false,
		enableGateRetrieval: false,
		retrievalTTLSeconds: 60,
		retrievalMaxEntries: 64,
		scSamples:           1,
		scMaxTokensPerSample: 0,
	},
	contracts.ProfileCost: {
		minConfidenceToStop: 0.7,
		minVoIToEscalate:    0.3,
		maxEscalations:      1,
		useVoI:              true,
		enableGateRetrieval: true,
		retrievalTTLSeconds: 300,
		retrievalMaxEntries: 256,
		scSamples:           1,
		scMaxTokensPerSample: 0,
	},
	contracts.ProfileReliability: {
		minConfidenceToStop: 0.9,
		minVoIToEscalate:    0.05,
		maxEscalations:      3,
		useVoI:              true,
		enableGateRetrieval: true,
		retrievalTTLSeconds: 600,
		retrievalMaxEntries: 512,
		scSamples:           3,
		scMaxTokensPerSample: 2000,
	},
	contracts.ProfileBalanced: {
		minConfidenceToStop: 0.8,
		minVoIToEscalate:    0.15,
		maxEscalations:      2,
		useVoI:              true,
		enableGateRetrieval: true,
		retrievalTTLSeconds: 300,
		retrievalMaxEntries: 256,
		scSamples:           1,
		scMaxTokensPerSample: 0,
	},
}

// ApplyProfileDefaults fills any Adaptive field left unset (nil pointer, or
// empty slice/map where applicable) from a's routing profile's default
// table, defaulting the profile itself to "balanced" when unset. Mutates a
// in place; callers normalizing a Graph are expected to operate on a deep
// copy already.
func ApplyProfileDefaults(a *contracts.Adaptive) {
	if a == nil {
		return
	}
	profile := a.RoutingProfile
	if profile == "" {
		profile = contracts.ProfileBalanced
		a.RoutingProfile = profile
	}
	d, ok := profileTable[profile]
	if !ok {
		d = profileTable[contracts.ProfileBalanced]
	}

	if a.MinConfidenceToStop == nil {
		v := d.minConfidenceToStop
		a.MinConfidenceToStop = &v
	}
	if a.MinVoIToEscalate == nil {
		v := d.minVoIToEscalate
		a.MinVoIToEscalate = &v
	}
	if a.MaxEscalations == nil {
		v := d.maxEscalations
		a.MaxEscalations = &v
	}
	if a.UseVoI == nil {
		v := d.useVoI
		a.UseVoI = &v
	}
	if a.EnableGateRetrieval == nil {
		v := d.enableGateRetrieval
		a.EnableGateRetrieval = &v
	}
	if a.RetrievalStrategy == "" {
		a.RetrievalStrategy = contracts.RetrievalExact
	}
	if a.RetrievalTTLSeconds == nil {
		v := d.retrievalTTLSeconds
		a.RetrievalTTLSeconds = &v
	}
	if a.RetrievalMaxEntries == nil {
		v := d.retrievalMaxEntries
		a.RetrievalMaxEntries = &v
	}
	if a.SCSamples == nil {
		v := d.scSamples
		a.SCSamples = &v
	}
	if a.SCMaxTokensPerSample == nil {
		v := d.scMaxTokensPerSample
		a.SCMaxTokensPerSample = &v
	}
	if a.EscalationOrder == nil {
		a.EscalationOrder = []string{}
	}
	if a.StageCosts == nil {
		a.StageCosts = map[string]float64{}
	}
}
