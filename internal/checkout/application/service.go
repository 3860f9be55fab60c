package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-checkout/internal/checkout/domain"
	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	paydomain "github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	txapp "github.com/dmehra2102/storefront-checkout/internal/transaction/application"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/money"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
	"github.com/dmehra2102/storefront-checkout/pkg/tracing"
)

const paymentMethodCard = "CARD"

type CheckoutRequest struct {
	ProductID int64
	Quantity  int
	Card      paydomain.Card
}

// Service drives a checkout from stock reservation to a settled transaction
// and owns every compensating stock release.
type Service struct {
	log              *slog.Logger
	inv              Inventory
	txs              Transactions
	pay              Payments
	events           outbox.Enqueuer
	metrics          Metrics
	tracer           trace.Tracer
	authorizeTimeout time.Duration
}

func NewService(log *slog.Logger, inv Inventory, txs Transactions, pay Payments, events outbox.Enqueuer, metrics Metrics, authorizeTimeout time.Duration) *Service {
	return &Service{
		log:              log,
		inv:              inv,
		txs:              txs,
		pay:              pay,
		events:           events,
		metrics:          metrics,
		tracer:           otel.Tracer("checkout"),
		authorizeTimeout: authorizeTimeout,
	}
}

// InitiateCheckout reserves stock, records a PENDING transaction, authorizes
// the card and settles. Failures before reservation leave no trace. A
// declined or errored payment returns a FAILED summary and a nil error.
func (s *Service) InitiateCheckout(ctx context.Context, req CheckoutRequest) (summary domain.Summary, err error) {
	started := time.Now()
	attempt := domain.NewAttempt(req.ProductID, req.Quantity)
	log := s.log.With("product_id", req.ProductID, "quantity", req.Quantity)

	ctx, span := s.tracer.Start(ctx, "InitiateCheckout", trace.WithAttributes(
		attribute.Int64("product.id", req.ProductID), attribute.Int("quantity", req.Quantity)))
	defer func() {
		span.SetAttributes(attribute.String("checkout.stage", string(attempt.Stage)))
		if err != nil {
			span.RecordError(err)
			log.Warn("checkout ended with error", "stage", attempt.Stage, "err", err)
		}
		span.End()
		s.metrics.ObserveCheckout(checkoutOutcome(summary, err), started)
	}()

	if err := invdomain.ValidateQuantity(req.Quantity); err != nil {
		return domain.Summary{}, err
	}
	if err := s.pay.ValidateCard(req.Card); err != nil {
		return domain.Summary{}, err
	}
	token, err := s.pay.TokenizeCard(ctx, req.Card)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("tokenize card: %w", err)
	}

	product, err := s.inv.ReserveStock(ctx, req.ProductID, req.Quantity)
	if err != nil {
		return domain.Summary{}, err
	}
	if err := attempt.Advance(domain.StageStockReserved); err != nil {
		return domain.Summary{}, s.abortReserved(ctx, log, req, err)
	}

	amount, err := money.Multiply(product.PriceCents, req.Quantity)
	if err != nil {
		return domain.Summary{}, s.abortReserved(ctx, log, req, err)
	}
	tx, err := s.txs.Create(ctx, txapp.NewTransaction{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		AmountCents:   amount,
		PaymentMethod: paymentMethodCard,
	})
	if err != nil {
		return domain.Summary{}, s.abortReserved(ctx, log, req, fmt.Errorf("create transaction: %w", err))
	}
	attempt.TransactionNumber = tx.Number
	log = log.With("transaction_number", tx.Number)
	span.SetAttributes(attribute.String("transaction.number", tx.Number))

	var auth paydomain.Authorization
	authErr := attempt.Advance(domain.StageAuthorizing)
	if authErr == nil {
		authCtx, cancel := context.WithTimeout(ctx, s.authorizeTimeout)
		auth, authErr = s.pay.Authorize(authCtx, amount, token, tx.Number)
		cancel()
	}

	details := domain.PaymentDetails{
		GatewayTransactionID: auth.GatewayTransactionID,
		GatewayStatus:        auth.Status,
		CardBrand:            req.Card.Brand(),
		CardLast4:            req.Card.Last4(),
		Source:               "checkout",
	}
	var gatewayErr error
	switch {
	case authErr == nil:
	case errors.Is(authErr, context.DeadlineExceeded):
		log.Warn("authorization timed out", "err", authErr)
		details.GatewayStatus = domain.GatewayTimeout
		details.Error = authErr.Error()
	default:
		log.Error("authorization failed", "err", authErr)
		details.GatewayStatus = paydomain.GatewayError
		details.Error = authErr.Error()
		gatewayErr = fmt.Errorf("authorize %s: %w", tx.Number, authErr)
	}
	outcome := domain.SettlementFor(details.GatewayStatus)

	// Settlement and compensation outlive the caller.
	settleCtx := context.WithoutCancel(ctx)
	settled, won, err := s.settle(settleCtx, tx.Number, outcome, details)
	if err != nil {
		log.Warn("settle failed, retrying once", "status", outcome, "err", err)
		settled, won, err = s.settle(settleCtx, tx.Number, outcome, details)
	}
	if err != nil {
		summary = summaryOf(tx, details.GatewayStatus)
		if outcome != txdomain.StatusFailed {
			return summary, errors.Join(err, gatewayErr)
		}
		// The transaction is still PENDING and holds its stock. The reconciler
		// fails it and releases the stock only if it wins that transition.
		rerr := s.reconcile(settleCtx, log, invdomain.StockReleaseFailed{
			TransactionNumber: tx.Number,
			ProductID:         tx.ProductID,
			Quantity:          tx.Quantity,
			SettlePending:     true,
		}, err)
		return summary, errors.Join(rerr, gatewayErr)
	}

	summary = summaryOf(settled, details.GatewayStatus)
	log.Info("checkout settled", "status", settled.Status, "gateway_status", details.GatewayStatus, "won", won)

	if won && settled.Status == txdomain.StatusFailed {
		if err := s.compensate(settleCtx, log, settled); err != nil {
			return summary, errors.Join(err, gatewayErr)
		}
	}
	if err := attempt.Settle(settled.Status); err != nil {
		return summary, errors.Join(err, gatewayErr)
	}
	return summary, gatewayErr
}

func summaryOf(tx txdomain.Transaction, gateway paydomain.GatewayStatus) domain.Summary {
	return domain.Summary{
		TransactionNumber: tx.Number,
		Status:            tx.Status,
		AmountCents:       tx.AmountCents,
		ProductID:         tx.ProductID,
		Quantity:          tx.Quantity,
		GatewayStatus:     gateway,
	}
}

// settle applies the outcome. If another actor already settled the
// transaction it returns the current row and won=false.
func (s *Service) settle(ctx context.Context, number string, to txdomain.Status, details domain.PaymentDetails) (txdomain.Transaction, bool, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return txdomain.Transaction{}, false, err
	}
	settled, err := s.txs.UpdateStatus(ctx, number, to, raw)
	if errors.Is(err, txdomain.ErrInvalidTransition) {
		current, ferr := s.txs.FindByNumber(ctx, number)
		if ferr != nil {
			return txdomain.Transaction{}, false, ferr
		}
		s.log.Info("transaction settled elsewhere", "transaction_number", number, "status", current.Status)
		return current, false, nil
	}
	if err != nil {
		return txdomain.Transaction{}, false, fmt.Errorf("settle %s: %w", number, err)
	}
	return settled, true, nil
}

// abortReserved returns stock taken before a transaction row existed.
func (s *Service) abortReserved(ctx context.Context, log *slog.Logger, req CheckoutRequest, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.inv.ReleaseStock(ctx, req.ProductID, req.Quantity); err != nil {
		s.metrics.Compensation("failed")
		log.Error("stock release after abort failed", "err", err)
		return errors.Join(cause, s.reconcile(ctx, log, invdomain.StockReleaseFailed{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
		}, err))
	}
	s.metrics.Compensation("ok")
	return cause
}

// compensate returns the stock of a FAILED transaction. Only the actor that
// won the PENDING -> FAILED transition may call it.
func (s *Service) compensate(ctx context.Context, log *slog.Logger, tx txdomain.Transaction) error {
	ctx, span := s.tracer.Start(ctx, "CompensateStock")
	defer span.End()

	if _, err := s.inv.ReleaseStock(ctx, tx.ProductID, tx.Quantity); err != nil {
		span.RecordError(err)
		s.metrics.Compensation("failed")
		log.Error("stock compensation failed", "err", err)
		return s.reconcile(ctx, log, invdomain.StockReleaseFailed{
			TransactionNumber: tx.Number,
			ProductID:         tx.ProductID,
			Quantity:          tx.Quantity,
		}, err)
	}
	s.metrics.Compensation("ok")
	log.Info("stock compensated", "product_id", tx.ProductID, "quantity", tx.Quantity)
	return nil
}

// reconcile records a StockReleaseFailed event for the out-of-band
// reconciler and returns the ReconciliationError for the caller.
func (s *Service) reconcile(ctx context.Context, log *slog.Logger, event invdomain.StockReleaseFailed, cause error) error {
	rerr := &domain.ReconciliationError{
		TransactionNumber: event.TransactionNumber,
		ProductID:         event.ProductID,
		Quantity:          event.Quantity,
		Cause:             cause,
	}
	event.EventID = uuid.NewString()
	event.Reason = cause.Error()
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Join(rerr, err)
	}
	aggregateID := event.TransactionNumber
	if aggregateID == "" {
		aggregateID = strconv.FormatInt(event.ProductID, 10)
	}
	err = s.events.Enqueue(ctx, outbox.Message{
		AggregateType: "inventory",
		AggregateID:   aggregateID,
		Type:          invdomain.EventStockReleaseFailed,
		Payload:       payload,
		Headers:       map[string]string{"event_id": event.EventID},
		Traceparent:   tracing.Traceparent(ctx),
	})
	if err != nil {
		log.Error("reconciliation event not recorded", "event_id", event.EventID, "err", err)
		return errors.Join(rerr, err)
	}
	log.Warn("reconciliation scheduled", "event_id", event.EventID, "settle_pending", event.SettlePending)
	return rerr
}

// SettleFromGateway applies an asynchronous gateway notification. A
// duplicate notification fails with ErrInvalidTransition and changes nothing.
func (s *Service) SettleFromGateway(ctx context.Context, number string, status txdomain.Status) (txdomain.Transaction, error) {
	if !status.IsTerminal() {
		return txdomain.Transaction{}, fmt.Errorf("%w: cannot move to %q", txdomain.ErrInvalidTransition, status)
	}
	raw, err := json.Marshal(domain.PaymentDetails{GatewayStatus: gatewayStatusFor(status), Source: "gateway_callback"})
	if err != nil {
		return txdomain.Transaction{}, err
	}
	ctx = context.WithoutCancel(ctx)
	settled, err := s.txs.UpdateStatus(ctx, number, status, raw)
	if err != nil {
		return txdomain.Transaction{}, err
	}
	log := s.log.With("transaction_number", number)
	log.Info("transaction settled by gateway", "status", status)
	if settled.Status == txdomain.StatusFailed {
		if err := s.compensate(ctx, log, settled); err != nil {
			return settled, err
		}
	}
	return settled, nil
}

// GetTransaction resolves a numeric id or a transaction number.
func (s *Service) GetTransaction(ctx context.Context, ref string) (txdomain.Transaction, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.txs.FindByID(ctx, id)
	}
	return s.txs.FindByNumber(ctx, ref)
}

func (s *Service) ListTransactions(ctx context.Context, f txdomain.Filter) ([]txdomain.Transaction, error) {
	return s.txs.List(ctx, f)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (invdomain.Product, error) {
	return s.inv.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]invdomain.Product, error) {
	return s.inv.ListProducts(ctx)
}

func gatewayStatusFor(s txdomain.Status) paydomain.GatewayStatus {
	if s == txdomain.StatusCompleted {
		return paydomain.GatewayApproved
	}
	return paydomain.GatewayDeclined
}

func checkoutOutcome(s domain.Summary, err error) string {
	switch {
	case errors.Is(err, domain.ErrReconciliationNeeded):
		return "reconciliation"
	case s.TransactionNumber == "" && err != nil:
		return "rejected"
	case s.Status == txdomain.StatusCompleted:
		return "completed"
	case s.Status == txdomain.StatusFailed:
		return "failed"
	default:
		return "error"
	}
}
