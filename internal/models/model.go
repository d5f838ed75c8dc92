package models

import "time"

// User represents a registered participant, either as seller or bidder
type User struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Bio         string    `json:"bio"`
	Skills      []string  `json:"skills"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is the registration input for a User
type Profile struct {
	Name   string   `validate:"required,max=80"`
	Email  string   `validate:"required,email"`
	Bio    string   `validate:"max=1000"`
	Skills []string `validate:"dive,max=64"`
}

// Status is the derived lifecycle state of an auction
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusLive     Status = "live"
	StatusEnded    Status = "ended"
)

// Auction represents a time slot put up for auction by a seller.
// Status is never stored; it is derived from StartTime, EndTime and now.
type Auction struct {
	AuctionID       string     `json:"auction_id"`
	SellerID        string     `json:"seller_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Tags            []string   `json:"tags"`
	DurationMinutes int        `json:"duration_minutes"`
	MinBid          float64    `json:"min_bid"`
	CurrentBid      float64    `json:"current_bid"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	CreatedAt       time.Time  `json:"created_at"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
}

// AuctionSpec is the creation input for an Auction
type AuctionSpec struct {
	SellerID        string `validate:"required"`
	Title           string `validate:"max=200"`
	Description     string `validate:"max=5000"`
	Category        string `validate:"max=100"`
	Tags            []string
	DurationMinutes int     `validate:"gt=0"`
	MinBid          float64 `validate:"gt=0"`
	StartTime       time.Time
}

// Bid represents an accepted bid on an auction
type Bid struct {
	BidID      string    `json:"bid_id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// Admission is the outcome of an accepted bid
type Admission struct {
	Bid           Bid     `json:"bid"`
	NewCurrentBid float64 `json:"new_current_bid"`
}

// AuctionSnapshot is a consistent view of an auction and its bid history
type AuctionSnapshot struct {
	Auction Auction
	Status  Status
	Bids    []Bid // most recent first
}

// AuctionView is an auction as presented to callers, with its derived status
// and the amounts a new bid must clear
type AuctionView struct {
	Auction
	Status        Status    `json:"status"`
	Floor         float64   `json:"floor"`
	SuggestedBids []float64 `json:"suggested_bids"`
	BidCount      int       `json:"bid_count"`
	LeadingBid    *Bid      `json:"leading_bid,omitempty"`
}

// EventType names an engine event consumed by downstream services
type EventType string

const (
	EventAuctionCreated  EventType = "auction_created"
	EventBidAccepted     EventType = "bid_accepted"
	EventAuctionArchived EventType = "auction_archived"
)

// Event is published after a state change has been committed
type Event struct {
	Type       EventType `json:"type"`
	AuctionID  string    `json:"auction_id"`
	BidID      string    `json:"bid_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
