package domain

// Decision is the outcome of the AVS/CVN risk policy.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionHold Decision = "hold"
	DecisionFail Decision = "fail"
)

// FailureReason is a locally decided failure message. Empty means none.
type FailureReason string

// Failure reasons produced by the risk policy and the capture checks.
const (
	ReasonCVNFailed          FailureReason = "CVN check failed"
	ReasonAVSFailed          FailureReason = "AVS check failed"
	ReasonFraudReview        FailureReason = "AVS/CVN triggered fraud review"
	ReasonMissingRiskSignal  FailureReason = "No authorization status entry"
	ReasonCaptureFailed      FailureReason = "Capture failed"
	ReasonInvalidToken       FailureReason = "Invalid authorization token"
	ReasonCaptureUnconfirmed FailureReason = "Capture acknowledgement carried no transaction id"
)

// IsEmpty reports whether no failure was recorded.
func (r FailureReason) IsEmpty() bool {
	return r == ""
}

// String returns the message text.
func (r FailureReason) String() string {
	return string(r)
}

// RiskSignal holds the AVS and CVN codes reported for an authorization.
// Found is false when the processor logged no "Authorized" entry; the codes are then empty.
type RiskSignal struct {
	AVSCode string
	CVNCode string
	Found   bool
}

// ExtractRiskSignal takes the codes from the latest "Authorized" status-log entry.
// The log is ordered newest first, so the first match wins.
func ExtractRiskSignal(log []StatusLogEntry) RiskSignal {
	for _, entry := range log {
		if entry.Status == StatusAuthorized {
			return RiskSignal{AVSCode: entry.AVSCode, CVNCode: entry.CVNCode, Found: true}
		}
	}
	return RiskSignal{}
}

// MissingSignalPolicy decides what happens when no authorization entry was logged.
type MissingSignalPolicy string

const (
	// MissingSignalEvaluate feeds the empty signal through the thresholds like any other.
	// With the default sets the empty CVN code is moderate, so the result is Hold.
	MissingSignalEvaluate MissingSignalPolicy = "evaluate"
	// MissingSignalFail fails the authorization outright.
	MissingSignalFail MissingSignalPolicy = "fail"
)

// CodeSet is a set of AVS or CVN result codes.
type CodeSet map[string]struct{}

// NewCodeSet builds a set from codes.
func NewCodeSet(codes ...string) CodeSet {
	set := make(CodeSet, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s CodeSet) Contains(code string) bool {
	_, ok := s[code]
	return ok
}

// DefaultRiskScoreFail is the processor risk score at which it fails a transaction itself.
const DefaultRiskScoreFail = 100

// RiskThresholds configures the risk policy for one call.
type RiskThresholds struct {
	CVNFail       CodeSet
	CVNModerate   CodeSet
	AVSFail       CodeSet
	AVSModerate   CodeSet
	MissingSignal MissingSignalPolicy
	RiskScoreFail int
}

// DefaultRiskThresholds returns a fresh copy of the built-in thresholds.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		CVNFail:       NewCodeSet("N", "P", "S"),
		CVNModerate:   NewCodeSet("U", ""),
		AVSFail:       NewCodeSet("N", "C", "E"),
		AVSModerate:   NewCodeSet("A", "B", "W", "Z", "P", "U", "I"),
		MissingSignal: MissingSignalEvaluate,
		RiskScoreFail: DefaultRiskScoreFail,
	}
}

// ThresholdOverrides replaces individual threshold sets. A nil slice keeps the default.
type ThresholdOverrides struct {
	CVNFail       []string
	CVNModerate   []string
	AVSFail       []string
	AVSModerate   []string
	MissingSignal MissingSignalPolicy
	RiskScoreFail int
}

// Apply returns the defaults with the overrides laid on top.
func (o ThresholdOverrides) Apply(base RiskThresholds) RiskThresholds {
	if o.CVNFail != nil {
		base.CVNFail = NewCodeSet(o.CVNFail...)
	}
	if o.CVNModerate != nil {
		base.CVNModerate = NewCodeSet(o.CVNModerate...)
	}
	if o.AVSFail != nil {
		base.AVSFail = NewCodeSet(o.AVSFail...)
	}
	if o.AVSModerate != nil {
		base.AVSModerate = NewCodeSet(o.AVSModerate...)
	}
	if o.MissingSignal != "" {
		base.MissingSignal = o.MissingSignal
	}
	if o.RiskScoreFail > 0 {
		base.RiskScoreFail = o.RiskScoreFail
	}
	return base
}

// Verdict is the tagged result of the risk policy.
type Verdict struct {
	Decision Decision
	Reason   FailureReason
}

// Evaluate applies the thresholds to a signal. It is pure: CVN fail, then AVS fail,
// then either moderate set, then pass.
func Evaluate(signal RiskSignal, thresholds RiskThresholds) Verdict {
	if !signal.Found && thresholds.MissingSignal == MissingSignalFail {
		return Verdict{Decision: DecisionFail, Reason: ReasonMissingRiskSignal}
	}

	switch {
	case thresholds.CVNFail.Contains(signal.CVNCode):
		return Verdict{Decision: DecisionFail, Reason: ReasonCVNFailed}
	case thresholds.AVSFail.Contains(signal.AVSCode):
		return Verdict{Decision: DecisionFail, Reason: ReasonAVSFailed}
	case thresholds.CVNModerate.Contains(signal.CVNCode), thresholds.AVSModerate.Contains(signal.AVSCode):
		return Verdict{Decision: DecisionHold, Reason: ReasonFraudReview}
	default:
		return Verdict{Decision: DecisionPass}
	}
}
