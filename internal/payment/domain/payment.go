package domain

import "errors"

var (
	ErrInvalidCard        = errors.New("invalid card")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

type CardToken string

type GatewayStatus string

const (
	GatewayPending  GatewayStatus = "PENDING"
	GatewayApproved GatewayStatus = "APPROVED"
	GatewayDeclined GatewayStatus = "DECLINED"
	GatewayVoided   GatewayStatus = "VOIDED"
	GatewayError    GatewayStatus = "ERROR"
)

// IsFinal reports whether the gateway will not change the status any more.
func (s GatewayStatus) IsFinal() bool {
	return s != GatewayPending
}

func (s GatewayStatus) Approved() bool {
	return s == GatewayApproved
}

// Charge is one authorization request. AmountCents is in minor units.
type Charge struct {
	AmountCents  int64
	Currency     string
	Token        CardToken
	Reference    string
	Installments int
}

type Authorization struct {
	GatewayTransactionID string
	Reference            string
	Status               GatewayStatus
	AmountCents          int64
}
