package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	payoutdomain "github.com/smallbiznis/rewardzway/internal/payout/domain"
	referraldomain "github.com/smallbiznis/rewardzway/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/rewardzway/internal/reward/domain"
	rewardclaimdomain "github.com/smallbiznis/rewardzway/internal/rewardclaim/domain"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/smallbiznis/rewardzway/internal/settlement"
	"github.com/smallbiznis/rewardzway/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, rewarddomain.ErrReferralAlreadySet),
		errors.Is(err, referraldomain.ErrCycleDetected):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, payoutdomain.ErrNothingToPay):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "nothing_to_pay",
			Message: "no rewards to pay for this window",
		}
	case errors.Is(err, rewardconfigdomain.ErrConfigurationMissing):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "configuration_missing",
			Message: "reward configuration is incomplete",
		}
	case errors.Is(err, rewarddomain.ErrAllocationBusy),
		errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, referraldomain.ErrCycleDetected):
		return "referral tree contains a cycle"
	case errors.Is(err, rewarddomain.ErrReferralAlreadySet):
		return "referral already set"
	default:
		return "conflict"
	}
}

// classifyErrorForLog returns the error type and code recorded on the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError && payload.Type == "internal_error" {
		return "internal", payload.Type
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, rewarddomain.ErrInvalidID),
		errors.Is(err, rewarddomain.ErrSelfReferral),
		errors.Is(err, referraldomain.ErrInvalidID),
		errors.Is(err, rewardclaimdomain.ErrInvalidID),
		errors.Is(err, rewardclaimdomain.ErrInvalidClaim),
		errors.Is(err, payoutdomain.ErrInvalidID),
		errors.Is(err, payoutdomain.ErrInvalidDateRange),
		errors.Is(err, settlement.ErrInvalidDateRange),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, rewardconfigdomain.ErrInvalidName),
		errors.Is(err, rewardconfigdomain.ErrInvalidKind),
		errors.Is(err, rewardconfigdomain.ErrInvalidValue):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, referraldomain.ErrUserNotFound),
		errors.Is(err, rewarddomain.ErrReferenceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// validationErrorCode unwraps to the sentinel text so wrapped errors keep a
// stable code.
func validationErrorCode(err error) string {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		rewarddomain.ErrInvalidID,
		referraldomain.ErrInvalidID,
		rewardclaimdomain.ErrInvalidID,
		payoutdomain.ErrInvalidID,
		rewarddomain.ErrSelfReferral,
		rewardclaimdomain.ErrInvalidClaim,
		payoutdomain.ErrInvalidDateRange,
		settlement.ErrInvalidDateRange,
		pagination.ErrInvalidPageToken,
		rewardconfigdomain.ErrInvalidName,
		rewardconfigdomain.ErrInvalidKind,
		rewardconfigdomain.ErrInvalidValue,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "self_referral":
		return "a member cannot refer themselves"
	default:
		return "invalid value"
	}
}
