package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-checkout/internal/payment/domain"
)

// Adapter validates card data, tokenizes it and drives one authorization to
// a final gateway status. It never retries a failed call.
type Adapter struct {
	log          *slog.Logger
	gw           Gateway
	rec          Recorder
	tracer       trace.Tracer
	currency     string
	pollInterval time.Duration
	now          func() time.Time
}

func NewAdapter(log *slog.Logger, gw Gateway, rec Recorder, currency string, pollInterval time.Duration) *Adapter {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Adapter{
		log:          log,
		gw:           gw,
		rec:          rec,
		tracer:       otel.Tracer("payment-adapter"),
		currency:     currency,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// ValidateCard checks card data locally without contacting the gateway.
func (a *Adapter) ValidateCard(card domain.Card) error {
	return card.Validate(a.now())
}

func (a *Adapter) TokenizeCard(ctx context.Context, card domain.Card) (domain.CardToken, error) {
	ctx, span := a.tracer.Start(ctx, "TokenizeCard")
	defer span.End()

	if err := a.ValidateCard(card); err != nil {
		a.record("tokenize", "invalid")
		return "", err
	}
	token, err := a.gw.Tokenize(ctx, card.Normalized())
	if err != nil {
		span.RecordError(err)
		a.record("tokenize", outcome(err))
		a.log.Warn("card tokenization failed", "card", card.String(), "err", err)
		return "", err
	}
	a.record("tokenize", "ok")
	return token, nil
}

// Authorize charges amountCents against token and waits, polling, until the
// gateway reports a final status or ctx ends.
func (a *Adapter) Authorize(ctx context.Context, amountCents int64, token domain.CardToken, reference string) (domain.Authorization, error) {
	ctx, span := a.tracer.Start(ctx, "Authorize", trace.WithAttributes(
		attribute.String("reference", reference), attribute.Int64("amount_cents", amountCents)))
	defer span.End()

	auth, err := a.gw.CreateCharge(ctx, domain.Charge{
		AmountCents:  amountCents,
		Currency:     a.currency,
		Token:        token,
		Reference:    reference,
		Installments: 1,
	})
	if err != nil {
		span.RecordError(err)
		a.record("authorize", outcome(err))
		return domain.Authorization{}, err
	}

	t := time.NewTicker(a.pollInterval)
	defer t.Stop()
	for !auth.Status.IsFinal() {
		select {
		case <-ctx.Done():
			a.record("authorize", "timeout")
			return auth, fmt.Errorf("%w: awaiting %s: %w", domain.ErrGatewayUnavailable, auth.GatewayTransactionID, ctx.Err())
		case <-t.C:
		}
		next, err := a.gw.GetCharge(ctx, auth.GatewayTransactionID)
		if err != nil {
			span.RecordError(err)
			a.record("authorize", outcome(err))
			return auth, err
		}
		auth = next
	}

	span.SetAttributes(attribute.String("gateway.status", string(auth.Status)))
	a.record("authorize", string(auth.Status))
	a.log.Info("authorization finished", "reference", reference, "gateway_transaction_id", auth.GatewayTransactionID, "gateway_status", auth.Status)
	return auth, nil
}

func (a *Adapter) record(endpoint, outcome string) {
	if a.rec != nil {
		a.rec.GatewayRequest(endpoint, outcome)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, domain.ErrInvalidCard):
		return "invalid"
	default:
		return "unavailable"
	}
}
