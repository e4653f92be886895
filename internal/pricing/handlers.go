package pricing

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// Handler exposes the pricing endpoints used by cart and checkout views.
type Handler struct {
	logger      zerolog.Logger
	validate    *validator.Validate
	metrics     *obs.PricingMetrics
	currency    string
	precision   int
	taxBps      int
	maxBatch    int
	concurrency int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Logger zerolog.Logger
	// Validate defaults to a fresh validator when nil.
	Validate          *validator.Validate
	Metrics           *obs.PricingMetrics
	CurrencyCode      string
	CurrencyPrecision int
	TaxBps            int
	MaxBatch          int
	Concurrency       int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	h := &Handler{
		logger:      cfg.Logger,
		validate:    v,
		metrics:     cfg.Metrics,
		currency:    cfg.CurrencyCode,
		precision:   cfg.CurrencyPrecision,
		taxBps:      cfg.TaxBps,
		maxBatch:    cfg.MaxBatch,
		concurrency: cfg.Concurrency,
	}
	if h.maxBatch <= 0 {
		h.maxBatch = 100
	}
	if h.concurrency <= 0 {
		h.concurrency = 8
	}
	return h
}

type saleAmountRequest struct {
	RawPrices       RawPrices `json:"raw_prices"`
	TargetPrecision *int      `json:"target_precision"`
}

type batchRequest struct {
	Items           []batchItem `json:"items" validate:"required,min=1,dive"`
	TargetPrecision *int        `json:"target_precision"`
}

type batchItem struct {
	Key       string    `json:"key" validate:"required,max=128"`
	RawPrices RawPrices `json:"raw_prices"`
}

type quoteRequest struct {
	Items    []quoteItem `json:"items" validate:"required,min=1,dive"`
	Voucher  int64       `json:"voucher" validate:"min=0"`
	Shipping int64       `json:"shipping" validate:"min=0"`
}

type quoteItem struct {
	Qty          int   `json:"qty" validate:"min=1"`
	UnitPrice    int64 `json:"unit_price" validate:"min=0"`
	RegularPrice int64 `json:"regular_price" validate:"min=0"`
}

// SaleAmountResult is the response payload for a single sale amount.
type SaleAmountResult struct {
	SaleAmount int64  `json:"sale_amount"`
	Precision  int    `json:"precision"`
	Formatted  string `json:"formatted"`
	Currency   string `json:"currency,omitempty"`
}

// BatchResult holds the outcome for one line item of a batch request.
type BatchResult struct {
	Key    string            `json:"key"`
	Result *SaleAmountResult `json:"result,omitempty"`
	Error  *common.ErrorBody `json:"error,omitempty"`
}

// QuoteResult is the response payload for a cart quote.
type QuoteResult struct {
	Subtotal int64  `json:"subtotal"`
	Savings  int64  `json:"savings"`
	Discount int64  `json:"discount"`
	Tax      int64  `json:"tax"`
	Shipping int64  `json:"shipping"`
	Total    int64  `json:"total"`
	Currency string `json:"currency,omitempty"`
}

// SaleAmount handles POST /api/v1/pricing/sale-amount.
func (h *Handler) SaleAmount(w http.ResponseWriter, r *http.Request) {
	var req saleAmountRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.compute(r.Context(), req.RawPrices, h.targetPrecision(req.TargetPrecision))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// BatchSaleAmounts handles POST /api/v1/pricing/sale-amounts. Items that fail
// carry their own error; the request as a whole still succeeds.
func (h *Handler) BatchSaleAmounts(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.validateItems(req, req.Items); err != nil {
		common.WriteError(w, err)
		return
	}

	ctx, span := obs.Tracer("pricing").Start(r.Context(), "pricing.batch_sale_amounts")
	defer span.End()
	span.SetAttributes(attribute.Int("pricing.items", len(req.Items)))
	h.metrics.ObserveBatch(len(req.Items))

	target := h.targetPrecision(req.TargetPrecision)
	results := make([]BatchResult, len(req.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = BatchResult{Key: item.Key}
			res, err := h.compute(gctx, item.RawPrices, target)
			if err != nil {
				results[i].Error = errorBody(err)
				return nil
			}
			results[i].Result = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		common.WriteError(w, common.NewAppError("CANCELLED", "request cancelled", http.StatusServiceUnavailable, err))
		return
	}
	common.Data(w, http.StatusOK, results)
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.validateItems(req, req.Items); err != nil {
		common.WriteError(w, err)
		return
	}

	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = Item{Qty: it.Qty, UnitPrice: it.UnitPrice, RegularPrice: it.RegularPrice}
	}
	s, err := Compute(items, req.Voucher, h.taxBps, req.Shipping)
	if err != nil {
		common.WriteError(w, mapError(err))
		return
	}
	common.Data(w, http.StatusOK, QuoteResult{
		Subtotal: s.Subtotal,
		Savings:  s.Savings,
		Discount: s.Discount,
		Tax:      s.Tax,
		Shipping: s.Shipping,
		Total:    s.Total,
		Currency: h.currency,
	})
}

func (h *Handler) compute(ctx context.Context, raw RawPrices, target int) (SaleAmountResult, error) {
	sale, err := SaleMoney(raw, target)
	if err != nil {
		appErr := mapError(err)
		h.metrics.ObserveSale(resultLabel(err))
		lg := obs.Logger(ctx, h.logger)
		lg.Debug().Err(err).
			Str("precision", raw.Precision.String()).
			Int("target_precision", target).
			Msg("sale amount rejected")
		return SaleAmountResult{}, appErr
	}
	if sale.IsZero() {
		h.metrics.ObserveSale(obs.ResultZero)
	} else {
		h.metrics.ObserveSale(obs.ResultOK)
	}
	return SaleAmountResult{
		SaleAmount: sale.Amount,
		Precision:  sale.Precision,
		Formatted:  sale.String(),
		Currency:   h.currency,
	}, nil
}

func (h *Handler) targetPrecision(requested *int) int {
	if requested != nil {
		return *requested
	}
	return h.precision
}

// validateItems checks the struct tags of req and bounds the item list by the configured batch size.
func (h *Handler) validateItems(req, items any) error {
	if err := h.validate.Struct(req); err != nil {
		return validationError(err)
	}
	if err := h.validate.Var(items, "max="+strconv.Itoa(h.maxBatch)); err != nil {
		return validationError(err)
	}
	return nil
}

func mapError(err error) *common.AppError {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return common.NewAppError("INVALID_ARGUMENT", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, money.ErrOverflow):
		return common.NewAppError("OVERFLOW", "amount out of range", http.StatusUnprocessableEntity, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}

func resultLabel(err error) string {
	if errors.Is(err, money.ErrOverflow) {
		return obs.ResultOverflow
	}
	return obs.ResultInvalid
}

func errorBody(err error) *common.ErrorBody {
	var appErr *common.AppError
	if !errors.As(err, &appErr) {
		appErr = mapError(err)
	}
	return &common.ErrorBody{Code: appErr.Code, Message: appErr.Message}
}

func validationError(err error) *common.AppError {
	appErr := common.NewAppError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest, err)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		appErr.Details = map[string]any{"fields": fields}
	}
	return appErr
}
