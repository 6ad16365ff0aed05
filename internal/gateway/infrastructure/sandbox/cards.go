package sandbox

// TestCard describes how the sandbox answers for one card number.
type TestCard struct {
	AVSCode   string
	CVNCode   string
	RiskScore int
	// Decline rejects the payment method before any authorization is attempted.
	Decline bool
	// SkipAuthLog authorizes without writing an "Authorized" status-log entry.
	SkipAuthLog bool
}

// Card numbers with scripted behavior. Numbers not listed authorize cleanly.
const (
	CardApproved      = "4485983356242217"
	CardDeclined      = "4555555555555550"
	CardAVSNoMatch    = "4111111111111111"
	CardCVNNoMatch    = "4222222222222220"
	CardCVNUnverified = "4012888888881881"
	CardAVSZipOnly    = "5105105105105100"
	CardHighRisk      = "5555555555554444"
	CardNoAuthLog     = "4000000000000002"
)

var defaultCard = TestCard{AVSCode: "Y", CVNCode: "M", RiskScore: 5}

// TestCards is the sandbox card table.
var TestCards = map[string]TestCard{
	CardApproved:      defaultCard,
	CardDeclined:      {Decline: true},
	CardAVSNoMatch:    {AVSCode: "N", CVNCode: "M", RiskScore: 20},
	CardCVNNoMatch:    {AVSCode: "Y", CVNCode: "N", RiskScore: 20},
	CardCVNUnverified: {AVSCode: "X", CVNCode: "U", RiskScore: 10},
	CardAVSZipOnly:    {AVSCode: "Z", CVNCode: "M", RiskScore: 10},
	CardHighRisk:      {AVSCode: "Y", CVNCode: "M", RiskScore: 100},
	CardNoAuthLog:     {RiskScore: 5, SkipAuthLog: true},
}

func lookupCard(number string) TestCard {
	if card, ok := TestCards[number]; ok {
		return card
	}
	return defaultCard
}
