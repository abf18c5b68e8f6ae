package strategy

import "OptionSentinel/internal/model"

// LowerQuartile is the fraction of the 52-week range that bounds a cheap price.
const LowerQuartile = 0.25

// Score flags a ticker as a candidate when its price sits in the lower quarter
// of its 52-week range or either momentum signal fired.
func Score(snap model.TickerSnapshot, sig model.MomentumSignals) model.CandidateIndicator {
	bound := snap.Week52Low + (snap.Week52High-snap.Week52Low)*LowerQuartile
	lowerQrt := snap.CurrentPrice < bound

	return model.CandidateIndicator{
		TickerSnapshot:   snap,
		LowerQrtBound:    bound,
		LowerQrtInd:      lowerQrt,
		UpVsPriDayVs8Day: sig.Day,
		UpVsPriWkVs8Day:  sig.Week,
		PutCandidateInd:  lowerQrt || sig.Day || sig.Week,
	}
}
