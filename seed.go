package main

import (
	"context"
	"fmt"
	"time"

	bidding "github.com/Olivier33jnspe/bidmenow/internal/biddingService"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// seedSampleAuction registers a demo seller and bidders and opens a live
// auction with a short bid history
func seedSampleAuction(ctx context.Context, svc *bidding.AuctionService, clk clock.Clock) error {
	seller, err := svc.RegisterUser(ctx, model.Profile{
		Name:   "Olivier",
		Email:  "olivier@example.com",
		Bio:    "Native French speaker and conversation coach",
		Skills: []string{"French", "Conversation"},
	})
	if err != nil {
		return fmt.Errorf("seed: seller: %w", err)
	}

	view, err := svc.CreateAuction(ctx, model.AuctionSpec{
		SellerID:        seller.UserID,
		Title:           "1-Hour Live French Coaching Session",
		Description:     "Personal French conversation practice with immediate feedback. Perfect for intermediate learners wanting to boost confidence and fluency.",
		Category:        "Language Learning",
		Tags:            []string{"Conversational", "1-on-1", "Video Call"},
		DurationMinutes: 180,
		MinBid:          25,
		StartTime:       clk.Now().Add(-30 * time.Minute),
	})
	if err != nil {
		return fmt.Errorf("seed: auction: %w", err)
	}

	bids := []struct {
		name   string
		amount float64
	}{
		{"FrenchFan22", 38},
		{"Mike_learns", 42},
		{"Sarah M.", 45},
	}
	for _, b := range bids {
		bidder, err := svc.RegisterUser(ctx, model.Profile{Name: b.name, Email: "demo@example.com"})
		if err != nil {
			return fmt.Errorf("seed: bidder %s: %w", b.name, err)
		}
		if _, err := svc.SubmitBid(ctx, view.AuctionID, bidder.UserID, b.amount); err != nil {
			return fmt.Errorf("seed: bid %.2f: %w", b.amount, err)
		}
	}

	utils.Info("sample auction seeded", map[string]any{"auction_id": view.AuctionID, "seller_id": seller.UserID})
	return nil
}
