package application_test

import (
	"context"
	"sync"

	"cardgate/internal/gateway/domain"
)

// recordingProcessor is a scripted ProcessorClient that records every call.
type recordingProcessor struct {
	mu sync.Mutex

	authorizeRecord domain.RemoteRecord
	authorizeErr    error
	captureAck      *domain.CaptureAck
	captureErr      error
	cancelErr       error
	findRecord      *domain.RemoteRecord
	findErr         error

	authorizeCalls []domain.AuthorizationRequest
	riskScores     []int
	captureCalls   [][]domain.TransactionRef
	cancelCalls    [][]domain.TransactionRef
	findCalls      []string
}

func approvedRecord(ref, merchantTxnID string, log ...domain.StatusLogEntry) domain.RemoteRecord {
	return domain.RemoteRecord{
		Ref:                   domain.TransactionRef(ref),
		MerchantTransactionID: merchantTxnID,
		StatusCode:            domain.StatusOK,
		StatusMessage:         "OK",
		StatusLog:             log,
		Fields:                map[string]string{"merchantTransactionId": merchantTxnID, "VID": ref},
	}
}

func cardCharge() domain.ChargeRequest {
	return domain.ChargeRequest{
		Amount: 4900,
		PaymentMethod: domain.NewCardPaymentMethod(domain.Card{
			Number:           "4485983356242217",
			Expiry:           domain.Expiry{Year: 2030, Month: 9},
			VerificationCode: "123",
			FirstName:        "Longbob",
			LastName:         "Longsen",
		}),
		Address: &domain.Address{Line1: "456 My Street", City: "Ottawa", Region: "ON", Country: "CA", PostalCode: "K1C2N6"},
		Options: domain.ChargeOptions{MerchantTransactionID: "order-1", SKU: "PREMIUM_USD", ItemName: "Premium Subscription"},
	}
}

func authorizedEntry(avs, cvn string) domain.StatusLogEntry {
	return domain.StatusLogEntry{Status: domain.StatusAuthorized, AVSCode: avs, CVNCode: cvn}
}

func (p *recordingProcessor) Authorize(_ context.Context, req domain.AuthorizationRequest, riskScoreFail int) (domain.RemoteRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorizeCalls = append(p.authorizeCalls, req)
	p.riskScores = append(p.riskScores, riskScoreFail)
	if p.authorizeErr != nil {
		return domain.RemoteRecord{}, p.authorizeErr
	}
	record := p.authorizeRecord
	if record.MerchantTransactionID == "" {
		record.MerchantTransactionID = req.MerchantTransactionID
	}
	return record, nil
}

func (p *recordingProcessor) Capture(_ context.Context, refs []domain.TransactionRef) (domain.CaptureAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureCalls = append(p.captureCalls, refs)
	if p.captureErr != nil {
		return domain.CaptureAck{}, p.captureErr
	}
	if p.captureAck != nil {
		return *p.captureAck, nil
	}
	results := make([]domain.CaptureResult, 0, len(refs))
	for _, ref := range refs {
		results = append(results, domain.CaptureResult{
			Ref:                   ref,
			MerchantTransactionID: p.authorizeRecord.MerchantTransactionID,
			StatusCode:            domain.StatusOK,
		})
	}
	return domain.CaptureAck{Attempted: len(refs), SucceededCount: len(refs), Results: results}, nil
}

func (p *recordingProcessor) Cancel(_ context.Context, refs []domain.TransactionRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelCalls = append(p.cancelCalls, refs)
	return p.cancelErr
}

func (p *recordingProcessor) FindByMerchantTransactionID(_ context.Context, id string) (domain.RemoteRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.findCalls = append(p.findCalls, id)
	if p.findErr != nil {
		return domain.RemoteRecord{}, p.findErr
	}
	if p.findRecord != nil {
		return *p.findRecord, nil
	}
	return p.authorizeRecord, nil
}
