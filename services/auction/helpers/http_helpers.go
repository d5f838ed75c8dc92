package helpers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, biddingerrors.ErrInvalidAuctionSpec):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrInvalidProfile):
		return http.StatusBadRequest, "invalid user profile"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrAuctionNotLive):
		return http.StatusConflict, "auction not live"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrContention):
		return http.StatusServiceUnavailable, "auction busy, retry later"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// ErrorDetails extracts what a client needs to retry a rejected bid
func ErrorDetails(err error) map[string]any {
	var tooLow *biddingerrors.BidTooLowError
	if errors.As(err, &tooLow) {
		return map[string]any{
			"amount":         tooLow.Amount,
			"floor":          tooLow.Floor,
			"suggested_bids": tooLow.Suggested,
		}
	}

	var notLive *biddingerrors.AuctionNotLiveError
	if errors.As(err, &notLive) {
		return map[string]any{
			"auction_id": notLive.AuctionID,
			"status":     string(notLive.Status),
		}
	}

	var contention *biddingerrors.ContentionError
	if errors.As(err, &contention) {
		return map[string]any{
			"auction_id": contention.AuctionID,
			"attempts":   contention.Attempts,
		}
	}
	return nil
}

// RespondError maps err and writes the error envelope, with details and
// Retry-After where they apply. It returns the status written.
func RespondError(c *gin.Context, err error) int {
	status, message := MapErrorToHTTP(err)

	var contention *biddingerrors.ContentionError
	if errors.As(err, &contention) {
		retryAfter := int(math.Max(1, math.Ceil(contention.Waited.Seconds())))
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}

	utils.JSONErrorWithDetails(c, status, fmt.Errorf("%s: %w", message, err), message, ErrorDetails(err))
	return status
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
