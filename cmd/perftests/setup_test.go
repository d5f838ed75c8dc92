package perftests

import (
	"context"
	"fmt"
	"testing"
	"time"

	bidding "github.com/Olivier33jnspe/bidmenow/internal/biddingService"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/users"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// engine bundles an in-memory engine with its seeded auctions and bidders
type engine struct {
	svc      *bidding.AuctionService
	auctions []string
	bidders  []string
}

// setupEngine creates an engine with numAuctions live auctions and numBidders registered bidders
func setupEngine(b *testing.B, numAuctions, numBidders int) *engine {
	b.Helper()

	// per-bid info logs would dominate the measurements
	utils.SetLevel("error")

	directory := users.NewDirectory()
	coordinator := bidding.NewCoordinator(
		repository.NewMemoryAuctionStore(),
		ledger.NewLedger(),
		directory,
		nil,
		nil,
		clock.NewSystemClock(),
		bidding.DefaultOptions(),
	)
	e := &engine{svc: bidding.NewAuctionService(coordinator, directory)}

	ctx := context.Background()
	for i := 0; i < numAuctions; i++ {
		view, err := e.svc.CreateAuction(ctx, model.AuctionSpec{
			SellerID:        "seller_perf",
			Title:           fmt.Sprintf("Session %d", i),
			DurationMinutes: 24 * 60,
			MinBid:          50,
			StartTime:       time.Now().Add(-time.Minute),
		})
		if err != nil {
			b.Fatalf("failed to create auction: %v", err)
		}
		e.auctions = append(e.auctions, view.AuctionID)
	}

	for i := 0; i < numBidders; i++ {
		user, err := e.svc.RegisterUser(ctx, model.Profile{Name: fmt.Sprintf("bidder_%d", i), Email: "perf@example.com"})
		if err != nil {
			b.Fatalf("failed to register bidder: %v", err)
		}
		e.bidders = append(e.bidders, user.UserID)
	}
	return e
}
