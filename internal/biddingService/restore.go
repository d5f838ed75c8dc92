package bidding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/users"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// RestoreStats counts what a restore loaded
type RestoreStats struct {
	Users    int
	Auctions int
	Bids     int
}

// Restore rebuilds the in-memory engine from the journal. The bid log is the
// ground truth: an auction's current bid is recomputed from it.
func Restore(ctx context.Context, journal repository.Journal, store repository.AuctionStore, bidLedger *ledger.Ledger, directory *users.Directory) (RestoreStats, error) {
	state, err := journal.Load(ctx)
	if err != nil {
		return RestoreStats{}, fmt.Errorf("restore: load journal: %w", err)
	}

	for _, user := range state.Users {
		directory.Restore(user)
	}

	bids := append([]model.Bid(nil), state.Bids...)
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].AuctionID != bids[j].AuctionID {
			return bids[i].AuctionID < bids[j].AuctionID
		}
		return bids[i].Amount < bids[j].Amount
	})

	highest := make(map[string]float64, len(state.Auctions))
	for _, bid := range bids {
		highest[bid.AuctionID] = math.Max(highest[bid.AuctionID], bid.Amount)
	}

	for _, auction := range state.Auctions {
		current := math.Max(auction.MinBid, highest[auction.AuctionID])
		if current != auction.CurrentBid {
			utils.Warn("restored current bid differs from bid log", map[string]any{
				"auction_id": auction.AuctionID,
				"stored":     auction.CurrentBid,
				"from_bids":  current,
			})
			auction.CurrentBid = current
		}
		store.Restore(auction)
	}

	if err := bidLedger.Restore(bids); err != nil {
		return RestoreStats{}, fmt.Errorf("restore: %w", err)
	}

	stats := RestoreStats{Users: len(state.Users), Auctions: len(state.Auctions), Bids: len(bids)}
	utils.Info("engine restored from journal", map[string]any{
		"users":    stats.Users,
		"auctions": stats.Auctions,
		"bids":     stats.Bids,
	})
	return stats, nil
}
