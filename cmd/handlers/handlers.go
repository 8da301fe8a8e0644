package handlers

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/rinha-dispatch/internal/dto"
	"github.com/diogomassis/rinha-dispatch/internal/models"
	"github.com/diogomassis/rinha-dispatch/internal/services/payments"
)

const requestIDHeader = "X-Request-Id"

type PaymentService interface {
	Enqueue(ctx context.Context, correlationID string, amount decimal.Decimal) (*models.PendingPayment, error)
	GetSummary(ctx context.Context, from, to string) (*dto.PaymentSummaryResponse, error)
	Purge(ctx context.Context) error
}

type HealthReader interface {
	Snapshots() (defaultHealth, fallbackHealth models.ProcessorHealth)
}

type Handlers struct {
	payments PaymentService
	health   HealthReader
	instance string
	log      zerolog.Logger
}

func New(paymentService PaymentService, health HealthReader, instance string, log zerolog.Logger) *Handlers {
	return &Handlers{
		payments: paymentService,
		health:   health,
		instance: instance,
		log:      log,
	}
}

// NewApp builds the fiber app with jsoniter as its codec.
func NewApp(h *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	app.Use(requestID)
	app.Post("/payments", h.HandlePostPayment)
	app.Get("/payments-summary", h.HandleGetSummary)
	app.Post("/purge-payments", h.HandlePurgePayments)
	app.Get("/health", h.HandleHealth)
	return app
}

func requestID(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDHeader, id)
	return c.Next()
}

func (h *Handlers) HandlePostPayment(c *fiber.Ctx) error {
	var req dto.PaymentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Kind:    payments.KindInvalidRequest,
			Message: "malformed payment body",
		})
	}

	if _, err := h.payments.Enqueue(c.UserContext(), req.CorrelationID, req.Amount); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handlers) HandleGetSummary(c *fiber.Ctx) error {
	res, err := h.payments.GetSummary(c.UserContext(), c.Query("from"), c.Query("to"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}

func (h *Handlers) HandlePurgePayments(c *fiber.Ctx) error {
	if err := h.payments.Purge(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "payments purged"})
}

func (h *Handlers) HandleHealth(c *fiber.Ctx) error {
	def, fb := h.health.Snapshots()
	return c.JSON(dto.HealthResponse{
		Status:    "ok",
		Instance:  h.instance,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		GoVersion: runtime.Version(),
		Processors: map[models.ProcessorType]models.ProcessorHealth{
			models.ProcessorDefault:  def,
			models.ProcessorFallback: fb,
		},
	})
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	var paymentErr *payments.Error
	if !errors.As(err, &paymentErr) {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("unexpected handler error")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Kind: "internal", Message: "internal error"})
	}

	code := fiber.StatusBadRequest
	if paymentErr.Kind == payments.KindStoreUnavailable {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.ErrorResponse{Kind: paymentErr.Kind, Message: paymentErr.Message})
}
