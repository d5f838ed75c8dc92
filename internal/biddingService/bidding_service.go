package bidding

import (
	"context"
	"fmt"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/users"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// AuctionService is the host-facing API of the engine: auction creation,
// bid submission, reads and user registration
type AuctionService struct {
	coordinator *Coordinator
	directory   *users.Directory
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(coordinator *Coordinator, directory *users.Directory) *AuctionService {
	return &AuctionService{
		coordinator: coordinator,
		directory:   directory,
	}
}

// Coordinator exposes the underlying coordinator, e.g. for the janitor
func (s *AuctionService) Coordinator() *Coordinator {
	return s.coordinator
}

// CreateAuction validates, journals and stores a new auction
func (s *AuctionService) CreateAuction(ctx context.Context, spec model.AuctionSpec) (model.AuctionView, error) {
	c := s.coordinator
	now := c.clock.Now()

	auction, err := repository.NewAuction(spec, now)
	if err != nil {
		return model.AuctionView{}, fmt.Errorf("service: %w", err)
	}

	persistCtx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
	err = c.journal.SaveAuction(persistCtx, auction)
	cancel()
	if err != nil {
		return model.AuctionView{}, fmt.Errorf("service: journal auction: %w - %v", biddingerrors.ErrPersistence, err)
	}

	if err := c.store.Insert(auction); err != nil {
		return model.AuctionView{}, fmt.Errorf("service: %w", err)
	}

	c.publish(ctx, model.Event{
		Type:       model.EventAuctionCreated,
		AuctionID:  auction.AuctionID,
		UserID:     auction.SellerID,
		Amount:     auction.MinBid,
		OccurredAt: now,
	})

	utils.Info("auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
		"min_bid":    auction.MinBid,
		"start_time": auction.StartTime,
		"end_time":   auction.EndTime,
	})

	return s.GetAuction(auction.AuctionID)
}

// SubmitBid places a bid through the auction's lane
func (s *AuctionService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Admission, error) {
	admission, err := s.coordinator.SubmitBid(ctx, auctionID, bidderID, amount)
	if err != nil {
		return model.Admission{}, fmt.Errorf("service: failed to place bid on auction %s by user %s: %w", auctionID, bidderID, err)
	}
	return admission, nil
}

// GetAuction returns the auction with its derived status and bidding floor
func (s *AuctionService) GetAuction(auctionID string) (model.AuctionView, error) {
	if auctionID == "" {
		return model.AuctionView{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	snap, err := s.coordinator.Snapshot(auctionID)
	if err != nil {
		return model.AuctionView{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return viewOf(snap), nil
}

// GetHistory returns the auction's accepted bids, most recent first
func (s *AuctionService) GetHistory(auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	snap, err := s.coordinator.Snapshot(auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return snap.Bids, nil
}

// ListAuctions returns all auctions, optionally only those in status
func (s *AuctionService) ListAuctions(status model.Status) ([]model.AuctionView, error) {
	switch status {
	case "", model.StatusUpcoming, model.StatusLive, model.StatusEnded:
	default:
		return nil, fmt.Errorf("service: %w - unknown status %q", biddingerrors.ErrInvalidBid, status)
	}

	auctions := s.coordinator.store.List()
	views := make([]model.AuctionView, 0, len(auctions))
	for _, auction := range auctions {
		view, err := s.GetAuction(auction.AuctionID)
		if err != nil {
			return nil, err
		}
		if status != "" && view.Status != status {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// RegisterUser validates, journals and stores a new user profile
func (s *AuctionService) RegisterUser(ctx context.Context, profile model.Profile) (model.User, error) {
	c := s.coordinator

	user, err := users.NewUser(profile, c.clock.Now())
	if err != nil {
		return model.User{}, fmt.Errorf("service: %w", err)
	}

	persistCtx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
	err = c.journal.SaveUser(persistCtx, user)
	cancel()
	if err != nil {
		return model.User{}, fmt.Errorf("service: journal user: %w - %v", biddingerrors.ErrPersistence, err)
	}

	if err := s.directory.Insert(user); err != nil {
		return model.User{}, fmt.Errorf("service: %w", err)
	}

	utils.Info("user registered", map[string]any{"user_id": user.UserID, "name": user.Name})
	return user, nil
}

// GetUser returns a registered user
func (s *AuctionService) GetUser(userID string) (model.User, error) {
	if userID == "" {
		return model.User{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidProfile)
	}

	user, err := s.directory.Get(userID)
	if err != nil {
		return model.User{}, fmt.Errorf("service: failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func viewOf(snap model.AuctionSnapshot) model.AuctionView {
	view := model.AuctionView{
		Auction:       snap.Auction,
		Status:        snap.Status,
		Floor:         ledger.Floor(snap.Auction),
		SuggestedBids: ledger.SuggestedBids(snap.Auction),
		BidCount:      len(snap.Bids),
	}
	if snap.Status != model.StatusLive {
		view.SuggestedBids = []float64{}
	}
	if len(snap.Bids) > 0 {
		leading := snap.Bids[0]
		view.LeadingBid = &leading
	}
	return view
}
