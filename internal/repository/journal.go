package repository

import (
	"context"
	"time"

	model "github.com/Olivier33jnspe/bidmenow/internal/models"
)

// Journal is the durable record of engine state: one record per user, one
// record per auction and one append-only bid log per auction.
type Journal interface {
	SaveUser(ctx context.Context, user model.User) error
	SaveAuction(ctx context.Context, auction model.Auction) error
	// RecordBid appends bid to its auction's log and raises the auction's
	// current bid in the same transaction.
	RecordBid(ctx context.Context, bid model.Bid) error
	ArchiveAuction(ctx context.Context, auctionID string, at time.Time) error
	Load(ctx context.Context) (JournalState, error)
}

// JournalState is everything needed to rebuild the in-memory engine
type JournalState struct {
	Users    []model.User
	Auctions []model.Auction
	Bids     []model.Bid // oldest first
}

// NopJournal keeps nothing; used when the engine runs purely in memory
type NopJournal struct{}

func (NopJournal) SaveUser(context.Context, model.User) error { return nil }
func (NopJournal) SaveAuction(context.Context, model.Auction) error { return nil }
func (NopJournal) RecordBid(context.Context, model.Bid) error { return nil }
func (NopJournal) ArchiveAuction(context.Context, string, time.Time) error { return nil }
func (NopJournal) Load(context.Context) (JournalState, error) { return JournalState{}, nil }
