package repository

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/utils"
)

// DefaultCategory is applied when an auction is created without a category
const DefaultCategory = "Language Learning"

// MaxDurationMinutes is the longest auction whose end time is representable as startTime + duration
const MaxDurationMinutes = math.MaxInt64 / int64(time.Minute)

// AuctionStore defines the auction record storage for the engine
type AuctionStore interface {
	Create(spec model.AuctionSpec, now time.Time) (model.Auction, error)
	Insert(auction model.Auction) error
	Get(auctionID string) (model.Auction, error)
	List() []model.Auction
	ApplyBid(auctionID string, amount float64) (model.Auction, error)
	Archive(auctionID string, at time.Time) (model.Auction, error)
	Restore(auction model.Auction)
	StatusOf(auction model.Auction, now time.Time) model.Status
}

// StatusOf derives an auction's status from its window and now.
// It is the only place in the engine where status is computed.
func StatusOf(auction model.Auction, now time.Time) model.Status {
	switch {
	case now.Before(auction.StartTime):
		return model.StatusUpcoming
	case now.Before(auction.EndTime):
		return model.StatusLive
	default:
		return model.StatusEnded
	}
}

// auctionRecord is a single independently lockable auction
type auctionRecord struct {
	mu      sync.RWMutex
	auction model.Auction
}

func (r *auctionRecord) snapshot() model.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAuction(r.auction)
}

// MemoryAuctionStore is a concurrency-safe in-memory implementation of AuctionStore
type MemoryAuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*auctionRecord // key: auctionID -> value: record
}

// NewMemoryAuctionStore creates a new in-memory auction store
func NewMemoryAuctionStore() *MemoryAuctionStore {
	return &MemoryAuctionStore{
		auctions: make(map[string]*auctionRecord),
	}
}

// NewAuction validates spec and builds the auction it describes without storing it
func NewAuction(spec model.AuctionSpec, now time.Time) (model.Auction, error) {
	if err := validateSpec(spec); err != nil {
		return model.Auction{}, err
	}

	category := spec.Category
	if category == "" {
		category = DefaultCategory
	}

	start := spec.StartTime.UTC()
	return model.Auction{
		AuctionID:       utils.GenerateID(),
		SellerID:        spec.SellerID,
		Title:           spec.Title,
		Description:     spec.Description,
		Category:        category,
		Tags:            utils.CleanList(spec.Tags),
		DurationMinutes: spec.DurationMinutes,
		MinBid:          spec.MinBid,
		CurrentBid:      spec.MinBid,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(spec.DurationMinutes) * time.Minute),
		CreatedAt:       now.UTC(),
	}, nil
}

// Create validates spec and inserts a new auction
func (s *MemoryAuctionStore) Create(spec model.AuctionSpec, now time.Time) (model.Auction, error) {
	auction, err := NewAuction(spec, now)
	if err != nil {
		return model.Auction{}, err
	}
	if err := s.Insert(auction); err != nil {
		return model.Auction{}, err
	}
	return cloneAuction(auction), nil
}

// Insert stores a freshly built auction; ids are never reused
func (s *MemoryAuctionStore) Insert(auction model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.AuctionID]; exists {
		return fmt.Errorf("insert auction %s: %w - duplicate id", auction.AuctionID, biddingerrors.ErrInvalidAuctionSpec)
	}
	s.auctions[auction.AuctionID] = &auctionRecord{auction: cloneAuction(auction)}
	return nil
}

func validateSpec(spec model.AuctionSpec) error {
	if err := utils.Validate(spec); err != nil {
		return fmt.Errorf("create auction: %w - %v", biddingerrors.ErrInvalidAuctionSpec, err)
	}
	if spec.StartTime.IsZero() {
		return fmt.Errorf("create auction: %w - missing start time", biddingerrors.ErrInvalidAuctionSpec)
	}
	if !utils.ValidAmount(spec.MinBid) {
		return fmt.Errorf("create auction: %w - min bid %v is not a positive finite number", biddingerrors.ErrInvalidAuctionSpec, spec.MinBid)
	}
	if int64(spec.DurationMinutes) > MaxDurationMinutes {
		return fmt.Errorf("create auction: %w - duration of %d minutes is out of range", biddingerrors.ErrInvalidAuctionSpec, spec.DurationMinutes)
	}
	end := spec.StartTime.Add(time.Duration(spec.DurationMinutes) * time.Minute)
	if !end.After(spec.StartTime) {
		return fmt.Errorf("create auction: %w - end time does not follow start time", biddingerrors.ErrInvalidAuctionSpec)
	}
	return nil
}

// Get returns a copy of the auction
func (s *MemoryAuctionStore) Get(auctionID string) (model.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return model.Auction{}, err
	}
	return rec.snapshot(), nil
}

// List returns every auction ordered by start time
func (s *MemoryAuctionStore) List() []model.Auction {
	s.mu.RLock()
	records := make([]*auctionRecord, 0, len(s.auctions))
	for _, rec := range s.auctions {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	auctions := make([]model.Auction, 0, len(records))
	for _, rec := range records {
		auctions = append(auctions, rec.snapshot())
	}
	sort.Slice(auctions, func(i, j int) bool {
		if auctions[i].StartTime.Equal(auctions[j].StartTime) {
			return auctions[i].AuctionID < auctions[j].AuctionID
		}
		return auctions[i].StartTime.Before(auctions[j].StartTime)
	})
	return auctions
}

// ApplyBid raises the auction's current bid. Callers must hold the auction's lane.
func (s *MemoryAuctionStore) ApplyBid(auctionID string, amount float64) (model.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return model.Auction{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !utils.ValidAmount(amount) {
		return model.Auction{}, fmt.Errorf("apply bid to auction %s: %w - amount %v is not a positive finite number",
			auctionID, biddingerrors.ErrInvalidBid, amount)
	}
	if amount <= rec.auction.CurrentBid {
		return model.Auction{}, fmt.Errorf("apply bid to auction %s: %w - %.2f does not exceed %.2f",
			auctionID, biddingerrors.ErrBidTooLow, amount, rec.auction.CurrentBid)
	}
	rec.auction.CurrentBid = amount

	return cloneAuction(rec.auction), nil
}

// Archive stamps an ended auction as archived. Archiving twice keeps the first stamp.
func (s *MemoryAuctionStore) Archive(auctionID string, at time.Time) (model.Auction, error) {
	rec, err := s.record(auctionID)
	if err != nil {
		return model.Auction{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if status := StatusOf(rec.auction, at); status != model.StatusEnded {
		return model.Auction{}, fmt.Errorf("archive auction %s: %w", auctionID,
			&biddingerrors.AuctionNotLiveError{AuctionID: auctionID, Status: status})
	}
	if rec.auction.ArchivedAt == nil {
		stamp := at.UTC()
		rec.auction.ArchivedAt = &stamp
	}

	return cloneAuction(rec.auction), nil
}

// Restore inserts or replaces an auction loaded from the journal
func (s *MemoryAuctionStore) Restore(auction model.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[auction.AuctionID] = &auctionRecord{auction: cloneAuction(auction)}
}

// StatusOf derives the auction's status at now
func (s *MemoryAuctionStore) StatusOf(auction model.Auction, now time.Time) model.Status {
	return StatusOf(auction, now)
}

func (s *MemoryAuctionStore) record(auctionID string) (*auctionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return rec, nil
}

func cloneAuction(a model.Auction) model.Auction {
	if a.Tags != nil {
		a.Tags = append(make([]string, 0, len(a.Tags)), a.Tags...)
	}
	if a.ArchivedAt != nil {
		stamp := *a.ArchivedAt
		a.ArchivedAt = &stamp
	}
	return a
}
