package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	"github.com/Olivier33jnspe/bidmenow/internal/events"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// Options tunes the coordinator's waiting and I/O budgets
type Options struct {
	AcquireTimeout time.Duration // per attempt to enter a lane
	MaxAttempts    int           // lane entry attempts before Contention
	RetryBackoff   time.Duration // pause between attempts, scaled by attempt number
	PersistTimeout time.Duration // journal write budget inside the lane
	PublishTimeout time.Duration // event publish budget
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		AcquireTimeout: 2 * time.Second,
		MaxAttempts:    3,
		RetryBackoff:   25 * time.Millisecond,
		PersistTimeout: 3 * time.Second,
		PublishTimeout: 500 * time.Millisecond,
	}
}

// UserLookup resolves bidder ids to display names
type UserLookup interface {
	DisplayName(userID string) (string, error)
}

// Coordinator is the serialization boundary for bid submission. Every
// submission for an auction runs inside that auction's lane; distinct
// auctions never share a lane.
type Coordinator struct {
	store     repository.AuctionStore
	ledger    *ledger.Ledger
	users     UserLookup
	journal   repository.Journal
	publisher events.Publisher
	clock     clock.Clock
	opts      Options

	mu    sync.Mutex
	lanes map[string]*lane // key: auctionID
}

// NewCoordinator creates a Coordinator. A nil journal or publisher disables that concern.
func NewCoordinator(
	store repository.AuctionStore,
	bidLedger *ledger.Ledger,
	users UserLookup,
	journal repository.Journal,
	publisher events.Publisher,
	clk clock.Clock,
	opts Options,
) *Coordinator {
	if journal == nil {
		journal = repository.NopJournal{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Coordinator{
		store:     store,
		ledger:    bidLedger,
		users:     users,
		journal:   journal,
		publisher: publisher,
		clock:     clk,
		opts:      opts,
		lanes:     make(map[string]*lane),
	}
}

// SubmitBid places a bid on an auction. Rejections are returned as errors
// wrapping *biddingerrors.AuctionNotLiveError, *biddingerrors.BidTooLowError
// or *biddingerrors.ContentionError.
//
// Cancelling ctx abandons a submission that is still waiting for the lane;
// once inside, the submission always runs to an accept or reject.
func (c *Coordinator) SubmitBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Admission, error) {
	if err := validateSubmission(auctionID, bidderID, amount); err != nil {
		return model.Admission{}, err
	}

	bidderName, err := c.users.DisplayName(bidderID)
	if err != nil {
		return model.Admission{}, fmt.Errorf("coordinator: resolve bidder: %w", err)
	}
	if _, err := c.store.Get(auctionID); err != nil {
		return model.Admission{}, fmt.Errorf("coordinator: %w", err)
	}

	ln, err := c.enterLane(ctx, auctionID)
	if err != nil {
		return model.Admission{}, err
	}
	defer c.leaveLane(ln)

	return c.admit(context.WithoutCancel(ctx), ln, auctionID, bidderID, bidderName, amount)
}

func validateSubmission(auctionID, bidderID string, amount float64) error {
	if auctionID == "" || bidderID == "" {
		return fmt.Errorf("coordinator: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !utils.ValidAmount(amount) {
		return fmt.Errorf("coordinator: %w - bid amount %v is not a positive finite number", biddingerrors.ErrInvalidBid, amount)
	}
	return nil
}

// admit runs fetch -> decide -> journal -> commit. The caller holds the lane.
func (c *Coordinator) admit(ctx context.Context, ln *lane, auctionID, bidderID, bidderName string, amount float64) (model.Admission, error) {
	auction, err := c.store.Get(auctionID)
	if err != nil {
		return model.Admission{}, fmt.Errorf("coordinator: %w", err)
	}

	now := c.clock.Now()
	admission, err := c.ledger.TryAdmit(auction, bidderID, bidderName, amount, now)
	if err != nil {
		utils.Info("bid rejected", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  bidderID,
			"amount":     amount,
			"floor":      ledger.Floor(auction),
			"status":     repository.StatusOf(auction, now),
			"reason":     err.Error(),
		})
		return model.Admission{}, fmt.Errorf("coordinator: %w", err)
	}

	persistCtx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
	err = c.journal.RecordBid(persistCtx, admission.Bid)
	cancel()
	if err != nil {
		utils.Error("bid not journaled", map[string]any{
			"auction_id": auctionID,
			"bid_id":     admission.Bid.BidID,
			"error":      err.Error(),
		})
		return model.Admission{}, fmt.Errorf("coordinator: journal bid on auction %s: %w - %v", auctionID, biddingerrors.ErrPersistence, err)
	}

	if err := c.commit(ln, admission); err != nil {
		utils.Error("bid journaled but not committed", map[string]any{
			"auction_id": auctionID,
			"bid_id":     admission.Bid.BidID,
			"error":      err.Error(),
		})
		return model.Admission{}, fmt.Errorf("coordinator: commit bid on auction %s: %w", auctionID, err)
	}

	c.publish(ctx, model.Event{
		Type:       model.EventBidAccepted,
		AuctionID:  auctionID,
		BidID:      admission.Bid.BidID,
		UserID:     bidderID,
		Amount:     admission.NewCurrentBid,
		OccurredAt: admission.Bid.CreatedAt,
	})

	utils.Info("bid accepted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     admission.Bid.BidID,
		"bidder_id":  bidderID,
		"amount":     admission.NewCurrentBid,
	})
	return admission, nil
}

// commit applies the new current bid and appends the bid as one step for readers.
// The ledger is checked first so a refused append never leaves a raised current bid behind.
func (c *Coordinator) commit(ln *lane, admission model.Admission) error {
	ln.commit.Lock()
	defer ln.commit.Unlock()

	if err := c.ledger.CanAppend(admission.Bid); err != nil {
		return err
	}
	if _, err := c.store.ApplyBid(admission.Bid.AuctionID, admission.NewCurrentBid); err != nil {
		return err
	}
	return c.ledger.Append(admission.Bid)
}

func (c *Coordinator) publish(ctx context.Context, event model.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()

	if err := c.publisher.Publish(pubCtx, event); err != nil {
		utils.Warn("event not published", map[string]any{
			"type":       event.Type,
			"auction_id": event.AuctionID,
			"error":      err.Error(),
		})
	}
}

// enterLane checks out the auction's lane and waits for it, retrying a bounded
// number of times before reporting Contention
func (c *Coordinator) enterLane(ctx context.Context, auctionID string) (*lane, error) {
	ln := c.checkoutLane(auctionID)

	for attempt := 1; ; attempt++ {
		acquireCtx, cancel := context.WithTimeout(ctx, c.opts.AcquireTimeout)
		err := ln.enter(acquireCtx)
		cancel()
		if err == nil {
			return ln, nil
		}

		if ctx.Err() != nil {
			c.checkinLane(ln)
			return nil, fmt.Errorf("coordinator: submission to auction %s abandoned: %w", auctionID, ctx.Err())
		}

		if attempt >= c.opts.MaxAttempts {
			c.checkinLane(ln)
			contention := &biddingerrors.ContentionError{
				AuctionID: auctionID,
				Attempts:  attempt,
				Waited:    time.Duration(attempt) * c.opts.AcquireTimeout,
			}
			utils.Warn("lane contention", map[string]any{
				"auction_id": auctionID,
				"attempts":   attempt,
			})
			return nil, fmt.Errorf("coordinator: %w", contention)
		}

		if c.opts.RetryBackoff > 0 {
			timer := time.NewTimer(time.Duration(attempt) * c.opts.RetryBackoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				c.checkinLane(ln)
				return nil, fmt.Errorf("coordinator: submission to auction %s abandoned: %w", auctionID, ctx.Err())
			}
		}
	}
}

func (c *Coordinator) leaveLane(ln *lane) {
	ln.leave()
	c.checkinLane(ln)
}

// checkoutLane returns the auction's lane, creating it on first use, and
// counts the caller as pending so the lane cannot be reaped underneath it
func (c *Coordinator) checkoutLane(auctionID string) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()

	ln, ok := c.lanes[auctionID]
	if !ok {
		ln = newLane()
		c.lanes[auctionID] = ln
	}
	ln.pending++
	return ln
}

func (c *Coordinator) checkinLane(ln *lane) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ln.pending--
}

// StatusOf returns the auction's status as of now. It never waits for the lane.
func (c *Coordinator) StatusOf(auctionID string) (model.Status, error) {
	auction, err := c.store.Get(auctionID)
	if err != nil {
		return "", fmt.Errorf("coordinator: %w", err)
	}
	return c.store.StatusOf(auction, c.clock.Now()), nil
}

// Snapshot reads an auction together with its bid history. It never waits for
// the lane, only for an in-progress commit to finish.
func (c *Coordinator) Snapshot(auctionID string) (model.AuctionSnapshot, error) {
	if _, err := c.store.Get(auctionID); err != nil {
		return model.AuctionSnapshot{}, fmt.Errorf("coordinator: %w", err)
	}

	// currentBid and history change together only under the commit lock
	ln := c.laneFor(auctionID)
	ln.commit.RLock()
	auction, err := c.store.Get(auctionID)
	bids := c.ledger.History(auctionID)
	ln.commit.RUnlock()
	if err != nil {
		return model.AuctionSnapshot{}, fmt.Errorf("coordinator: %w", err)
	}

	return model.AuctionSnapshot{
		Auction: auction,
		Status:  c.store.StatusOf(auction, c.clock.Now()),
		Bids:    bids,
	}, nil
}

// laneFor returns the auction's lane without counting the caller as pending
func (c *Coordinator) laneFor(auctionID string) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()

	ln, ok := c.lanes[auctionID]
	if !ok {
		ln = newLane()
		c.lanes[auctionID] = ln
	}
	return ln
}

// ReapLanes drops the lanes of Ended auctions that have nothing pending.
// Cleanup is advisory: a later submission simply creates a fresh lane and is
// rejected as not live.
func (c *Coordinator) ReapLanes() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	reaped := 0
	for auctionID, ln := range c.lanes {
		if ln.pending > 0 {
			continue
		}
		auction, err := c.store.Get(auctionID)
		if err != nil && !errors.Is(err, biddingerrors.ErrAuctionNotFound) {
			continue
		}
		if err == nil && c.store.StatusOf(auction, now) != model.StatusEnded {
			continue
		}
		delete(c.lanes, auctionID)
		reaped++
	}

	if reaped > 0 {
		utils.Debug("lanes reaped", map[string]any{"count": reaped, "remaining": len(c.lanes)})
	}
	return reaped
}

// ArchiveEnded archives every Ended auction that is not archived yet and
// returns how many were archived
func (c *Coordinator) ArchiveEnded(ctx context.Context) int {
	now := c.clock.Now()
	archived := 0

	for _, auction := range c.store.List() {
		if auction.ArchivedAt != nil || c.store.StatusOf(auction, now) != model.StatusEnded {
			continue
		}

		persistCtx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
		err := c.journal.ArchiveAuction(persistCtx, auction.AuctionID, now)
		cancel()
		if err != nil {
			utils.Error("auction archive not journaled", map[string]any{
				"auction_id": auction.AuctionID,
				"error":      err.Error(),
			})
			continue
		}

		if _, err := c.store.Archive(auction.AuctionID, now); err != nil {
			utils.Error("auction not archived", map[string]any{
				"auction_id": auction.AuctionID,
				"error":      err.Error(),
			})
			continue
		}

		c.publish(ctx, model.Event{
			Type:       model.EventAuctionArchived,
			AuctionID:  auction.AuctionID,
			Amount:     auction.CurrentBid,
			OccurredAt: now,
		})
		archived++
	}

	if archived > 0 {
		utils.Info("auctions archived", map[string]any{"count": archived})
	}
	return archived
}

// LaneCount returns the number of live lanes
func (c *Coordinator) LaneCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lanes)
}
