package model

// DetectorName identifies one of the fixed heuristic detectors
type DetectorName string

const (
	WalletConcentration DetectorName = "wallet_concentration"
	MinSizeSpam         DetectorName = "min_size_spam"
	TimingRegular       DetectorName = "timing_regular"
	PingPong            DetectorName = "ping_pong"
	RoundTrips          DetectorName = "round_trips"
	PriceWhips          DetectorName = "price_whips"
)

// DetectorNames lists every detector in evaluation order
var DetectorNames = []DetectorName{
	WalletConcentration,
	MinSizeSpam,
	TimingRegular,
	PingPong,
	RoundTrips,
	PriceWhips,
}

// Label is the categorical verdict for a score
type Label string

const (
	LabelNormal     Label = "normal"
	LabelWatch      Label = "watch"
	LabelSuspicious Label = "suspicious"
)

// Rank orders labels from least to most severe; unknown labels rank -1.
func (l Label) Rank() int {
	switch l {
	case LabelNormal:
		return 0
	case LabelWatch:
		return 1
	case LabelSuspicious:
		return 2
	default:
		return -1
	}
}

// DetectorResult is the output of one detector over one trade sample
type DetectorResult struct {
	Name      DetectorName `json:"name"`
	Triggered bool         `json:"triggered"`
	Intensity float64      `json:"intensity"`
	Summary   string       `json:"summary"`
}

// GroupKey identifies one (market, outcome) partition of a sample
type GroupKey struct {
	ConditionID  string
	OutcomeIndex OutcomeIndex
}

// GroupScore is the assessment of one outcome's trades
type GroupScore struct {
	Key     GroupKey
	Label   string // human display label, not the verdict
	Trades  []Trade
	Results []DetectorResult
	Score   float64
	Verdict Label
}

// AggregateScore is the result tree of one analysis
type AggregateScore struct {
	Event     EventMetadata
	Trades    []Trade
	Results   []DetectorResult
	Score     float64
	Label     Label
	Rationale []string
	Outcomes  []GroupScore
}

// LastTradeTimestamp returns the latest timestamp in the sample
func (a *AggregateScore) LastTradeTimestamp() (int64, bool) {
	if len(a.Trades) == 0 {
		return 0, false
	}
	last := a.Trades[0].Timestamp
	for _, t := range a.Trades[1:] {
		if t.Timestamp > last {
			last = t.Timestamp
		}
	}
	return last, true
}
