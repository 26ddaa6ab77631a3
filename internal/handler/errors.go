package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/affirmstudio/api/internal/model"
	"github.com/affirmstudio/api/pkg/response"
)

var inputErrors = []error{
	model.ErrTextTooLong,
	model.ErrUnsupportedDuration,
	model.ErrUnsupportedVoiceMode,
	model.ErrUnknownTrack,
	model.ErrEmptyUpload,
	model.ErrUploadTooLarge,
	model.ErrUnsupportedMediaType,
	model.ErrConsentRequired,
	model.ErrInvalidPreview,
	model.ErrPurchaseNotActive,
}

var entitlementErrors = []error{
	model.ErrPaymentRequired,
	model.ErrPurchaseNotFound,
	model.ErrPurchaseConsumed,
}

var notFoundErrors = []error{
	model.ErrNotFound,
	model.ErrProjectNotFound,
	model.ErrResultNotFound,
}

// writeError maps a service error onto the response envelope.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case isAny(err, inputErrors):
		return response.ValidationError(c, err.Error(), nil)
	case isAny(err, entitlementErrors):
		return response.PaymentRequired(c, err.Error())
	case isAny(err, notFoundErrors):
		return response.NotFound(c, err.Error())
	default:
		return response.ServiceError(c, err.Error())
	}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		out := make(map[string]string, len(validationErrors))
		for _, e := range validationErrors {
			out[e.Field()] = e.Tag()
		}
		return out
	}
	return err.Error()
}
