package helpers

import (
	"time"

	model "github.com/Olivier33jnspe/bidmenow/internal/models"
)

// Request/Response DTOs
type RegisterUserRequest struct {
	Name   string   `json:"name" binding:"required"`
	Email  string   `json:"email" binding:"required,email"`
	Bio    string   `json:"bio"`
	Skills []string `json:"skills"`
}

type CreateAuctionRequest struct {
	SellerID        string   `json:"seller_id" binding:"required"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	DurationMinutes int      `json:"duration_minutes" binding:"required,gt=0"`
	MinBid          float64  `json:"min_bid" binding:"required,gt=0"`
	StartTime       string   `json:"start_time" binding:"required"` // RFC3339
}

type PlaceBidRequest struct {
	BidderID string  `json:"bidder_id" binding:"required"`
	Amount   float64 `json:"amount" binding:"required,gt=0"`
}

type UserResponse struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Bio         string   `json:"bio"`
	Skills      []string `json:"skills"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	CreatedAt   string   `json:"created_at"`
}

type BidResponse struct {
	BidID      string  `json:"bid_id"`
	AuctionID  string  `json:"auction_id"`
	BidderID   string  `json:"bidder_id"`
	BidderName string  `json:"bidder_name"`
	Amount     float64 `json:"amount"`
	CreatedAt  string  `json:"created_at"`
}

type AdmissionResponse struct {
	Bid           BidResponse `json:"bid"`
	NewCurrentBid float64     `json:"new_current_bid"`
}

type AuctionResponse struct {
	AuctionID       string       `json:"auction_id"`
	SellerID        string       `json:"seller_id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Tags            []string     `json:"tags"`
	DurationMinutes int          `json:"duration_minutes"`
	MinBid          float64      `json:"min_bid"`
	CurrentBid      float64      `json:"current_bid"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time"`
	Status          string       `json:"status"`
	Floor           float64      `json:"floor"`
	SuggestedBids   []float64    `json:"suggested_bids"`
	BidCount        int          `json:"bid_count"`
	LeadingBid      *BidResponse `json:"leading_bid,omitempty"`
	ArchivedAt      string       `json:"archived_at,omitempty"`
}

// ToSpec converts the request into an auction spec; StartTime must be RFC3339
func (r CreateAuctionRequest) ToSpec() (model.AuctionSpec, error) {
	startTime, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		return model.AuctionSpec{}, err
	}
	return model.AuctionSpec{
		SellerID:        r.SellerID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Tags:            r.Tags,
		DurationMinutes: r.DurationMinutes,
		MinBid:          r.MinBid,
		StartTime:       startTime,
	}, nil
}

func (r RegisterUserRequest) ToProfile() model.Profile {
	return model.Profile{Name: r.Name, Email: r.Email, Bio: r.Bio, Skills: r.Skills}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewUserResponse(u model.User) UserResponse {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{
		UserID:      u.UserID,
		Name:        u.Name,
		Email:       u.Email,
		Bio:         u.Bio,
		Skills:      skills,
		Rating:      u.Rating,
		ReviewCount: u.ReviewCount,
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:      b.BidID,
		AuctionID:  b.AuctionID,
		BidderID:   b.BidderID,
		BidderName: b.BidderName,
		Amount:     b.Amount,
		CreatedAt:  formatTime(b.CreatedAt),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	out := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, NewBidResponse(b))
	}
	return out
}

func NewAuctionResponse(v model.AuctionView) AuctionResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	suggested := v.SuggestedBids
	if suggested == nil {
		suggested = []float64{}
	}

	resp := AuctionResponse{
		AuctionID:       v.AuctionID,
		SellerID:        v.SellerID,
		Title:           v.Title,
		Description:     v.Description,
		Category:        v.Category,
		Tags:            tags,
		DurationMinutes: v.DurationMinutes,
		MinBid:          v.MinBid,
		CurrentBid:      v.CurrentBid,
		StartTime:       formatTime(v.StartTime),
		EndTime:         formatTime(v.EndTime),
		Status:          string(v.Status),
		Floor:           v.Floor,
		SuggestedBids:   suggested,
		BidCount:        v.BidCount,
	}
	if v.LeadingBid != nil {
		leading := NewBidResponse(*v.LeadingBid)
		resp.LeadingBid = &leading
	}
	if v.ArchivedAt != nil {
		resp.ArchivedAt = formatTime(*v.ArchivedAt)
	}
	return resp
}
