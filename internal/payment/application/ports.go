package application

import (
	"context"

	"github.com/dmehra2102/storefront-checkout/internal/payment/domain"
)

// Gateway is a card processor. Implementations return errors wrapping
// domain.ErrInvalidCard or domain.ErrGatewayUnavailable.
type Gateway interface {
	Tokenize(ctx context.Context, card domain.Card) (domain.CardToken, error)
	CreateCharge(ctx context.Context, charge domain.Charge) (domain.Authorization, error)
	GetCharge(ctx context.Context, gatewayTransactionID string) (domain.Authorization, error)
}

type Recorder interface {
	GatewayRequest(endpoint, outcome string)
}
