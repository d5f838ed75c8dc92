package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// suggestedSteps are the offsets added to the smallest acceptable bid when
// proposing amounts to a bidder
var suggestedSteps = []float64{0, 5, 10, 20}

// Ledger holds one append-only, time-ordered bid log per auction and owns the
// admission rule. It performs no cross-call locking: callers serialize
// admission and commit per auction.
type Ledger struct {
	mu   sync.RWMutex
	logs map[string][]model.Bid // key: auctionID -> value: bids, oldest first
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		logs: make(map[string][]model.Bid),
	}
}

// Floor is the amount a new bid must exceed
func Floor(auction model.Auction) float64 {
	return math.Max(auction.CurrentBid, auction.MinBid)
}

// SuggestedBids proposes whole-unit amounts that clear the auction's floor
func SuggestedBids(auction model.Auction) []float64 {
	base := math.Floor(Floor(auction)) + 1
	out := make([]float64, 0, len(suggestedSteps))
	for _, step := range suggestedSteps {
		out = append(out, base+step)
	}
	return out
}

// TryAdmit decides whether a bid is admissible against auction as of now.
// On acceptance it returns the constructed bid and the new current bid; the
// bid becomes part of the history only once committed with Append.
func (l *Ledger) TryAdmit(auction model.Auction, bidderID, bidderName string, amount float64, now time.Time) (model.Admission, error) {
	if status := repository.StatusOf(auction, now); status != model.StatusLive {
		return model.Admission{}, &biddingerrors.AuctionNotLiveError{AuctionID: auction.AuctionID, Status: status}
	}

	if !utils.ValidAmount(amount) {
		return model.Admission{}, fmt.Errorf("ledger: %w - bid amount %v is not a positive finite number", biddingerrors.ErrInvalidBid, amount)
	}

	floor := Floor(auction)
	if amount <= floor {
		return model.Admission{}, &biddingerrors.BidTooLowError{
			Amount:    amount,
			Floor:     floor,
			Suggested: SuggestedBids(auction),
		}
	}

	bid := model.Bid{
		BidID:      utils.GenerateID(),
		AuctionID:  auction.AuctionID,
		BidderID:   bidderID,
		BidderName: bidderName,
		Amount:     amount,
		CreatedAt:  now.UTC(),
	}
	return model.Admission{Bid: bid, NewCurrentBid: amount}, nil
}

// CanAppend reports whether Append would accept bid, without changing the log
func (l *Ledger) CanAppend(bid model.Bid) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return checkAppend(l.logs[bid.AuctionID], bid)
}

// Append commits an admitted bid to its auction's log
func (l *Ledger) Append(bid model.Bid) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.logs[bid.AuctionID]
	if err := checkAppend(log, bid); err != nil {
		return err
	}
	l.logs[bid.AuctionID] = append(log, bid)
	return nil
}

func checkAppend(log []model.Bid, bid model.Bid) error {
	if !utils.ValidAmount(bid.Amount) {
		return fmt.Errorf("ledger: append to auction %s: %w - amount %v is not a positive finite number",
			bid.AuctionID, biddingerrors.ErrInvalidBid, bid.Amount)
	}
	if n := len(log); n > 0 && bid.Amount <= log[n-1].Amount {
		return fmt.Errorf("ledger: append to auction %s: %w - %.2f does not exceed %.2f",
			bid.AuctionID, biddingerrors.ErrBidTooLow, bid.Amount, log[n-1].Amount)
	}
	return nil
}

// History returns the auction's accepted bids, most recent first.
// The returned slice is a snapshot owned by the caller.
func (l *Ledger) History(auctionID string) []model.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log := l.logs[auctionID]
	out := make([]model.Bid, len(log))
	for i, bid := range log {
		out[len(log)-1-i] = bid
	}
	return out
}

// Len returns the number of accepted bids for the auction
func (l *Ledger) Len(auctionID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.logs[auctionID])
}

// Restore rebuilds logs from bids loaded oldest first
func (l *Ledger) Restore(bids []model.Bid) error {
	for _, bid := range bids {
		if err := l.Append(bid); err != nil {
			return fmt.Errorf("ledger: restore bid %s: %w", bid.BidID, err)
		}
	}
	return nil
}
