package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-checkout/internal/checkout/application"
	"github.com/dmehra2102/storefront-checkout/internal/checkout/domain"
	invdomain "github.com/dmehra2102/storefront-checkout/internal/inventory/domain"
	paydomain "github.com/dmehra2102/storefront-checkout/internal/payment/domain"
	txdomain "github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
)

var errBadRequest = errors.New("bad request")

type Handler struct {
	log         *slog.Logger
	service     *application.Service
	tracer      trace.Tracer
	idempotency func(http.Handler) http.Handler
	metrics     http.Handler
}

// NewHandler builds the storefront API. idempotency guards POST /checkout
// and metrics is served on /metrics; either may be nil.
func NewHandler(log *slog.Logger, service *application.Service, idempotency func(http.Handler) http.Handler, metrics http.Handler) *Handler {
	return &Handler{
		log:         log,
		service:     service,
		tracer:      otel.Tracer("checkout-http"),
		idempotency: idempotency,
		metrics:     metrics,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	checkout := r.With()
	if h.idempotency != nil {
		checkout = r.With(h.idempotency)
	}
	checkout.Post("/checkout", h.checkout)

	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{ref}", h.getTransaction)
	r.Put("/transactions/{number}/status", h.updateStatus)

	return r
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid product id"})
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toProductResp(p))
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	var req checkoutReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid body"})
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	summary, err := h.service.InitiateCheckout(ctx, application.CheckoutRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Card:      req.Card.toDomain(),
	})
	if err != nil {
		h.writeError(w, r, err, summary.TransactionNumber)
		return
	}

	status := http.StatusCreated
	if summary.Status == txdomain.StatusFailed {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, toSummaryResp(summary))
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var f txdomain.Filter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		st, err := txdomain.ParseStatus(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		f.Status = st
	}
	if s := q.Get("product_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid product_id"})
			return
		}
		f.ProductID = id
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		f.Limit = n
	}

	txs, err := h.service.ListTransactions(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	out := make([]transactionResp, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResp(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(t))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid body"})
		return
	}
	st, err := txdomain.ParseStatus(req.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	number := chi.URLParam(r, "number")
	t, err := h.service.SettleFromGateway(r.Context(), number, st)
	if err != nil {
		h.writeError(w, r, err, number)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResp(t))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, number string) {
	resp := errorResp{Error: err.Error(), TransactionNumber: number}
	var cardErr *paydomain.CardError
	var status int
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, invdomain.ErrInvalidQuantity),
		errors.Is(err, txdomain.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.As(err, &cardErr):
		status = http.StatusUnprocessableEntity
		resp.Fields = cardErr.Fields
	case errors.Is(err, paydomain.ErrInvalidCard):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, invdomain.ErrNotFound), errors.Is(err, txdomain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, invdomain.ErrInsufficientStock), errors.Is(err, txdomain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrReconciliationNeeded):
		status = http.StatusInternalServerError
	case errors.Is(err, paydomain.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrReconciliationNeeded) {
			resp.Error = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sorted(s []string) []string {
	sort.Strings(s)
	return s
}
