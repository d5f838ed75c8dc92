package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"

	driver "github.com/go-sql-driver/mysql"
)

// errDuplicateEntry is MySQL's ER_DUP_ENTRY
const errDuplicateEntry = 1062

// ErrStaleBid means the auction's stored current bid already reached the bid's amount
var ErrStaleBid = errors.New("mysql journal: bid does not raise stored current bid")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(80) NOT NULL,
		email VARCHAR(255) NOT NULL,
		bio TEXT NOT NULL,
		skills TEXT NOT NULL,
		rating DOUBLE NOT NULL,
		review_count INT NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auctions (
		id VARCHAR(64) PRIMARY KEY,
		seller_id VARCHAR(64) NOT NULL,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(100) NOT NULL,
		tags TEXT NOT NULL,
		duration_minutes INT NOT NULL,
		min_bid DOUBLE NOT NULL,
		current_bid DOUBLE NOT NULL,
		start_time DATETIME(6) NOT NULL,
		end_time DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		archived_at DATETIME(6) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(64) PRIMARY KEY,
		auction_id VARCHAR(64) NOT NULL,
		bidder_id VARCHAR(64) NOT NULL,
		bidder_name VARCHAR(80) NOT NULL,
		amount DOUBLE NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_bids_auction_amount (auction_id, amount)
	)`,
}

// Journal is a MySQL implementation of repository.Journal
type Journal struct {
	db *sql.DB
}

var _ repository.Journal = (*Journal)(nil)

// NewJournal creates a journal on an open database handle
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Open connects to MySQL. parseTime is forced on because the journal scans DATETIME columns into time.Time.
func Open(dsn string, maxOpen, maxIdle int, maxLifetime time.Duration) (*sql.DB, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql journal: parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := driver.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql journal: connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	return db, nil
}

// EnsureSchema creates the journal tables when missing
func (j *Journal) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql journal: ensure schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) SaveUser(ctx context.Context, user model.User) error {
	skills, err := encodeList(user.Skills)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, name, email, bio, skills, rating, review_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = j.db.ExecContext(ctx, query,
		user.UserID, user.Name, user.Email, user.Bio, skills,
		user.Rating, user.ReviewCount, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("mysql journal: save user %s: %w", user.UserID, describe(err))
	}
	return nil
}

func (j *Journal) SaveAuction(ctx context.Context, auction model.Auction) error {
	tags, err := encodeList(auction.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO auctions (id, seller_id, title, description, category, tags, duration_minutes,
			min_bid, current_bid, start_time, end_time, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = j.db.ExecContext(ctx, query,
		auction.AuctionID, auction.SellerID, auction.Title, auction.Description, auction.Category,
		tags, auction.DurationMinutes, auction.MinBid, auction.CurrentBid,
		auction.StartTime, auction.EndTime, auction.CreatedAt, auction.ArchivedAt)
	if err != nil {
		return fmt.Errorf("mysql journal: save auction %s: %w", auction.AuctionID, describe(err))
	}
	return nil
}

// RecordBid appends the bid and raises the auction's current bid in one transaction
func (j *Journal) RecordBid(ctx context.Context, bid model.Bid) (err error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql journal: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, bid.BidID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("mysql journal: insert bid %s: %w", bid.BidID, describe(err))
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE auctions SET current_bid = ? WHERE id = ? AND current_bid < ?`,
		bid.Amount, bid.AuctionID, bid.Amount)
	if err != nil {
		return fmt.Errorf("mysql journal: raise current bid of %s: %w", bid.AuctionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mysql journal: raise current bid of %s: %w", bid.AuctionID, err)
	}
	if affected != 1 {
		err = fmt.Errorf("%w: auction %s, amount %.2f", ErrStaleBid, bid.AuctionID, bid.Amount)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("mysql journal: commit bid %s: %w", bid.BidID, err)
	}
	return nil
}

func (j *Journal) ArchiveAuction(ctx context.Context, auctionID string, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE auctions SET archived_at = ? WHERE id = ? AND archived_at IS NULL`,
		at, auctionID)
	if err != nil {
		return fmt.Errorf("mysql journal: archive auction %s: %w", auctionID, err)
	}
	return nil
}

// Load reads every user, auction and bid; bids come back oldest first per auction
func (j *Journal) Load(ctx context.Context) (repository.JournalState, error) {
	var state repository.JournalState
	var err error

	if state.Users, err = j.loadUsers(ctx); err != nil {
		return repository.JournalState{}, err
	}
	if state.Auctions, err = j.loadAuctions(ctx); err != nil {
		return repository.JournalState{}, err
	}
	if state.Bids, err = j.loadBids(ctx); err != nil {
		return repository.JournalState{}, err
	}
	return state, nil
}

func (j *Journal) loadUsers(ctx context.Context) ([]model.User, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, name, email, bio, skills, rating, review_count, created_at
		FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("mysql journal: load users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		var skills string
		if err := rows.Scan(&u.UserID, &u.Name, &u.Email, &u.Bio, &skills, &u.Rating, &u.ReviewCount, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("mysql journal: scan user: %w", err)
		}
		if u.Skills, err = decodeList(skills); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql journal: load users: %w", err)
	}
	return out, nil
}

func (j *Journal) loadAuctions(ctx context.Context) ([]model.Auction, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seller_id, title, description, category, tags, duration_minutes,
			min_bid, current_bid, start_time, end_time, created_at, archived_at
		FROM auctions ORDER BY start_time
	`)
	if err != nil {
		return nil, fmt.Errorf("mysql journal: load auctions: %w", err)
	}
	defer rows.Close()

	var out []model.Auction
	for rows.Next() {
		var a model.Auction
		var tags string
		var archived sql.NullTime
		if err := rows.Scan(&a.AuctionID, &a.SellerID, &a.Title, &a.Description, &a.Category, &tags,
			&a.DurationMinutes, &a.MinBid, &a.CurrentBid, &a.StartTime, &a.EndTime, &a.CreatedAt, &archived); err != nil {
			return nil, fmt.Errorf("mysql journal: scan auction: %w", err)
		}
		if a.Tags, err = decodeList(tags); err != nil {
			return nil, err
		}
		if archived.Valid {
			stamp := archived.Time
			a.ArchivedAt = &stamp
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql journal: load auctions: %w", err)
	}
	return out, nil
}

func (j *Journal) loadBids(ctx context.Context) ([]model.Bid, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, auction_id, bidder_id, bidder_name, amount, created_at
		FROM bids ORDER BY auction_id, amount
	`)
	if err != nil {
		return nil, fmt.Errorf("mysql journal: load bids: %w", err)
	}
	defer rows.Close()

	var out []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("mysql journal: scan bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql journal: load bids: %w", err)
	}
	return out, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("mysql journal: encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("mysql journal: decode list %q: %w", raw, err)
	}
	return out, nil
}

// describe turns driver errors worth distinguishing into readable ones
func describe(err error) error {
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateEntry {
		return fmt.Errorf("duplicate id: %w", err)
	}
	return err
}
