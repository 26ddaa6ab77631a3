package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/middleware"
	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/internal/service"
	"github.com/affirmstudio/api/pkg/response"
)

type BillingHandler struct {
	service   *service.BillingService
	validator *validator.Validate
}

func NewBillingHandler(svc *service.BillingService, v *validator.Validate) *BillingHandler {
	return &BillingHandler{
		service:   svc,
		validator: v,
	}
}

// Packages handles GET /api/billing/packages
func (h *BillingHandler) Packages(c *fiber.Ctx) error {
	return response.OK(c, h.service.Packages())
}

// ListPurchases handles GET /api/billing/purchases
func (h *BillingHandler) ListPurchases(c *fiber.Ctx) error {
	result, err := h.service.ListPurchases(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// CreatePurchase handles POST /api/billing/purchases
func (h *BillingHandler) CreatePurchase(c *fiber.Ctx) error {
	var req model.PurchaseCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.CreatePurchase(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return response.Created(c, result)
}

// Limits handles GET /api/limits
func (h *BillingHandler) Limits(c *fiber.Ctx) error {
	result, err := h.service.Limits(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// ConfirmPurchase handles POST /api/billing/purchases/:purchaseId/confirm
func (h *BillingHandler) ConfirmPurchase(c *fiber.Ctx) error {
	purchaseID := c.Params("purchaseId")
	if purchaseID == "" {
		return response.ValidationError(c, "Purchase ID is required", nil)
	}

	result, err := h.service.ConfirmPurchase(c.UserContext(), middleware.GetUserID(c), purchaseID)
	if err != nil {
		// here a missing purchase is a plain lookup miss, not an entitlement failure
		if errors.Is(err, model.ErrPurchaseNotFound) {
			return response.NotFound(c, "Purchase not found")
		}
		return writeError(c, err)
	}
	return response.OK(c, result)
}

// ExpirePurchase handles POST /api/billing/purchases/:purchaseId/expire
func (h *BillingHandler) ExpirePurchase(c *fiber.Ctx) error {
	purchaseID := c.Params("purchaseId")
	if purchaseID == "" {
		return response.ValidationError(c, "Purchase ID is required", nil)
	}

	result, err := h.service.ExpirePurchase(c.UserContext(), middleware.GetUserID(c), purchaseID)
	if err != nil {
		if errors.Is(err, model.ErrPurchaseNotFound) {
			return response.NotFound(c, "Purchase not found")
		}
		return writeError(c, err)
	}
	return response.OK(c, result)
}
