// Package sandbox is an in-process gateway whose outcome is chosen by the
// card number, for local runs and tests.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dmehra2102/storefront-checkout/internal/payment/domain"
)

// Test cards. Any other valid card is approved.
const (
	CardApproved    = "4242424242424242"
	CardDeclined    = "4111111111111111"
	CardError       = "4000000000000002"
	CardUnavailable = "4000000000000119"
	CardSlowApprove = "5555555555554444"
	CardNeverSettle = "4000000000000259"
)

// plan is what a token will do when charged. It is all that survives of the
// card once Tokenize returns.
type plan struct {
	final        domain.GatewayStatus
	pendingPolls int
	unavailable  bool
}

func planFor(number string) plan {
	p := plan{final: domain.GatewayApproved}
	switch number {
	case CardDeclined:
		p.final = domain.GatewayDeclined
	case CardError:
		p.final = domain.GatewayError
	case CardUnavailable:
		p.unavailable = true
	case CardSlowApprove:
		p.pendingPolls = 1
	case CardNeverSettle:
		p.pendingPolls = -1
	}
	return p
}

type charge struct {
	auth domain.Authorization
	plan plan
}

// Gateway tokens are single use. Charges are kept only while they are
// PENDING.
type Gateway struct {
	mu      sync.Mutex
	tokens  map[domain.CardToken]plan
	charges map[string]*charge
}

func NewGateway() *Gateway {
	return &Gateway{
		tokens:  map[domain.CardToken]plan{},
		charges: map[string]*charge{},
	}
}

func (g *Gateway) Tokenize(ctx context.Context, card domain.Card) (domain.CardToken, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	tok := domain.CardToken("tok_sandbox_" + uuid.NewString())
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens[tok] = planFor(card.Number)
	return tok, nil
}

func (g *Gateway) CreateCharge(ctx context.Context, c domain.Charge) (domain.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return domain.Authorization{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.tokens[c.Token]
	if !ok {
		return domain.Authorization{Reference: c.Reference, Status: domain.GatewayError, AmountCents: c.AmountCents}, nil
	}
	delete(g.tokens, c.Token)
	if p.unavailable {
		return domain.Authorization{}, fmt.Errorf("%w: sandbox processor offline", domain.ErrGatewayUnavailable)
	}

	auth := domain.Authorization{
		GatewayTransactionID: "sbx-" + uuid.NewString(),
		Reference:            c.Reference,
		Status:               p.final,
		AmountCents:          c.AmountCents,
	}
	if p.pendingPolls != 0 {
		auth.Status = domain.GatewayPending
		g.charges[auth.GatewayTransactionID] = &charge{auth: auth, plan: p}
	}
	return auth, nil
}

func (g *Gateway) GetCharge(ctx context.Context, id string) (domain.Authorization, error) {
	if err := ctx.Err(); err != nil {
		return domain.Authorization{}, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.charges[id]
	if !ok {
		return domain.Authorization{}, fmt.Errorf("%w: unknown charge %s", domain.ErrGatewayUnavailable, id)
	}
	switch {
	case ch.plan.pendingPolls < 0:
	case ch.plan.pendingPolls > 0:
		ch.plan.pendingPolls--
	default:
		ch.auth.Status = ch.plan.final
		delete(g.charges, id)
	}
	return ch.auth, nil
}
