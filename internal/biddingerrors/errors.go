package biddingerrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/models"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrPersistence     = errors.New("persistence failure")
)

// business logic errors
var (
	ErrInvalidAuctionSpec = errors.New("invalid auction spec")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrInvalidBid         = errors.New("invalid bid")
	ErrAuctionNotLive     = errors.New("auction not live")
	ErrBidTooLow          = errors.New("bid amount too low")
	ErrContention         = errors.New("auction busy, retry later")
)

// BidTooLowError reports the floor a bid had to exceed
type BidTooLowError struct {
	Amount    float64
	Floor     float64
	Suggested []float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: %.2f does not exceed current floor %.2f", ErrBidTooLow, e.Amount, e.Floor)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// AuctionNotLiveError reports the status an auction was in when a bid arrived
type AuctionNotLiveError struct {
	AuctionID string
	Status    models.Status
}

func (e *AuctionNotLiveError) Error() string {
	return fmt.Sprintf("%s: auction %s is %s", ErrAuctionNotLive, e.AuctionID, e.Status)
}

func (e *AuctionNotLiveError) Unwrap() error { return ErrAuctionNotLive }

// ContentionError reports a submission that could not enter its auction's lane
type ContentionError struct {
	AuctionID string
	Attempts  int
	Waited    time.Duration
}

func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: auction %s lane unavailable after %d attempt(s) (%s)", ErrContention, e.AuctionID, e.Attempts, e.Waited)
}

func (e *ContentionError) Unwrap() error { return ErrContention }
