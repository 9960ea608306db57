package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const dateLayout = "2006-01-02"

// DocumentRenderer produces a PDF for an invoice projection.
type DocumentRenderer interface {
	Render(ctx context.Context, view *PublicView) ([]byte, error)
}

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	public   *PublicService
	pdf      DocumentRenderer
	validate *validator.Validate
}

// NewHandler builds Handler instance. The renderer may be nil when no
// conversion service is configured; PDF routes then return 503.
func NewHandler(logger *slog.Logger, service *Service, public *PublicService, pdf DocumentRenderer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		public:   public,
		pdf:      pdf,
		validate: validator.New(),
	}
}

// MountRoutes registers the authenticated invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.list)
	r.Post("/invoices", h.create)
	r.Get("/invoices/{id}", h.get)
	r.Put("/invoices/{id}", h.update)
	r.Delete("/invoices/{id}", h.delete)
	r.Post("/invoices/{id}/stop-recurring", h.stopRecurring)
	r.Post("/invoices/{id}/cancellation-resolution", h.resolveCancellation)
	r.Post("/invoices/{id}/payment-resolution", h.resolvePayment)
	r.Get("/invoices/{id}/pdf", h.pdfByID)
}

// MountPublicRoutes registers the token-authenticated client routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/invoices/{token}", h.publicView)
	r.Get("/invoices/{token}/pdf", h.publicPDF)
	r.Post("/invoices/{token}/pay", h.publicPay)
	r.Post("/invoices/{token}/cancel", h.publicCancel)
}

type itemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type invoiceRequest struct {
	ClientID    string        `json:"clientId" validate:"required,uuid"`
	IssueDate   string        `json:"issueDate" validate:"required,datetime=2006-01-02"`
	DueDate     string        `json:"dueDate" validate:"required,datetime=2006-01-02"`
	Status      string        `json:"status" validate:"omitempty,oneof=DRAFT SENT DUE OVERDUE PAID CANCELLED CANCELLATION_REQUESTED PAYMENT_PENDING"`
	TaxRate     float64       `json:"taxRate" validate:"gte=0,lte=100"`
	Notes       string        `json:"notes"`
	IsRecurring bool          `json:"isRecurring"`
	Frequency   string        `json:"frequency" validate:"omitempty,oneof=DAILY WEEKLY BIWEEKLY MONTHLY QUARTERLY YEARLY"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (req invoiceRequest) toInput() (Input, error) {
	issue, _ := time.Parse(dateLayout, req.IssueDate)
	due, _ := time.Parse(dateLayout, req.DueDate)

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return Input{}, fmt.Errorf("invoice: client id: %w", err)
	}
	input := Input{
		ClientID:    clientID,
		IssueDate:   issue,
		DueDate:     due,
		Status:      Status(req.Status),
		TaxRate:     req.TaxRate,
		Notes:       req.Notes,
		IsRecurring: req.IsRecurring,
		Frequency:   ParseFrequency(req.Frequency),
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return Input{}, fmt.Errorf("invoice: product id: %w", err)
		}
		input.Items = append(input.Items, ItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}
	return input, nil
}

type resolutionRequest struct {
	Approve bool `json:"approve"`
}

type itemResponse struct {
	ID                 uuid.UUID `json:"id"`
	ProductID          uuid.UUID `json:"productId"`
	ProductName        string    `json:"productName"`
	ProductDescription string    `json:"productDescription,omitempty"`
	Quantity           int       `json:"quantity"`
	UnitPrice          float64   `json:"unitPrice"`
	Total              float64   `json:"total"`
}

type invoiceResponse struct {
	ID                 uuid.UUID      `json:"id"`
	ClientID           uuid.UUID      `json:"clientId"`
	Number             string         `json:"number"`
	IssueDate          string         `json:"issueDate"`
	DueDate            string         `json:"dueDate"`
	Status             Status         `json:"status"`
	Items              []itemResponse `json:"items"`
	Subtotal           float64        `json:"subtotal"`
	TaxRate            float64        `json:"taxRate"`
	TaxAmount          float64        `json:"taxAmount"`
	Total              float64        `json:"total"`
	Notes              string         `json:"notes,omitempty"`
	IsRecurring        bool           `json:"isRecurring"`
	Frequency          Frequency      `json:"frequency,omitempty"`
	NextGenerationDate string         `json:"nextGenerationDate,omitempty"`
	SeriesID           *uuid.UUID     `json:"seriesId,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

func toResponse(inv *Invoice) invoiceResponse {
	resp := invoiceResponse{
		ID:          inv.ID,
		ClientID:    inv.ClientID,
		Number:      inv.Number,
		IssueDate:   inv.IssueDate.Format(dateLayout),
		DueDate:     inv.DueDate.Format(dateLayout),
		Status:      inv.Status,
		Subtotal:    inv.Subtotal,
		TaxRate:     inv.TaxRate,
		TaxAmount:   inv.TaxAmount,
		Total:       inv.Total,
		Notes:       inv.Notes,
		IsRecurring: inv.IsRecurring,
		Frequency:   inv.Frequency,
		SeriesID:    inv.SeriesID,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
	if inv.NextGenerationDate != nil {
		resp.NextGenerationDate = inv.NextGenerationDate.Format(dateLayout)
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			ProductDescription: item.ProductDescription,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			Total:              item.Total,
		})
	}
	return resp
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (invoiceRequest, bool) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := shared.AccountFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing account session")
		return uuid.Nil, false
	}
	return id, true
}

func invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "invalid invoice id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed identifier")
		return
	}

	inv, err := h.service.Create(r.Context(), account, input)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed identifier")
		return
	}

	inv, err := h.service.Update(r.Context(), account, id, input)
	if err != nil {
		h.logger.Error("update invoice", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), account, id); err != nil {
		h.logger.Error("delete invoice", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Get(r.Context(), account, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}

	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("recurring"); v != "" {
		recurring := v == "true"
		filter.IsRecurring = &recurring
	}
	if v := r.URL.Query().Get("from"); v != "" {
		filter.From, _ = time.Parse(dateLayout, v)
	}
	if v := r.URL.Query().Get("to"); v != "" {
		filter.To, _ = time.Parse(dateLayout, v)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	filter.Limit, filter.Offset = shared.ClampPage(limit, offset)
	if filter.Status != "" && !filter.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "unknown status filter")
		return
	}

	invoices, err := h.service.List(r.Context(), account, filter)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		resp = append(resp, toResponse(&invoices[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) stopRecurring(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.StopRecurring(r.Context(), account, id)
	if err != nil {
		h.logger.Error("stop recurring", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) resolveCancellation(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.ResolveCancellation)
}

func (h *Handler) resolvePayment(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, h.service.ResolvePayment)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID, invoiceID uuid.UUID, approve bool) (*Invoice, error)) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	var req resolutionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}

	inv, err := fn(r.Context(), account, id, req.Approve)
	if err != nil {
		h.logger.Error("resolve claim", slog.Any("error", err), slog.String("id", id.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(inv))
}

func (h *Handler) publicView(w http.ResponseWriter, r *http.Request) {
	view, err := h.public.View(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) pdfByID(w http.ResponseWriter, r *http.Request) {
	account, ok := accountID(w, r)
	if !ok {
		return
	}
	id, ok := invoiceID(w, r)
	if !ok {
		return
	}
	view, err := h.public.ViewByID(r.Context(), account, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.servePDF(w, r, view)
}

func (h *Handler) publicPDF(w http.ResponseWriter, r *http.Request) {
	view, err := h.public.View(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.servePDF(w, r, view)
}

func (h *Handler) servePDF(w http.ResponseWriter, r *http.Request, view *PublicView) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "document rendering is not configured")
		return
	}
	pdf, err := h.pdf.Render(r.Context(), view)
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Any("error", err), slog.String("number", view.Number))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "could not render invoice document")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+view.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) publicPay(w http.ResponseWriter, r *http.Request) {
	if err := h.public.ClaimPayment(r.Context(), chi.URLParam(r, "token")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "payment claim recorded"})
}

func (h *Handler) publicCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.public.RequestCancellation(r.Context(), chi.URLParam(r, "token")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancellation request recorded"})
}
