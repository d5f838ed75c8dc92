package bidding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	"github.com/Olivier33jnspe/bidmenow/internal/events"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/users"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var start = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	store   *repository.MemoryAuctionStore
	ledger  *ledger.Ledger
	dir     *users.Directory
	clock   *clock.ManualClock
	coord   *Coordinator
	service *AuctionService
}

// Helper to build an engine whose clock sits ten minutes into the live window of auctions starting at start
func newFixture(t *testing.T, journal repository.Journal, publisher events.Publisher, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		store:  repository.NewMemoryAuctionStore(),
		ledger: ledger.NewLedger(),
		dir:    users.NewDirectory(),
		clock:  clock.NewManualClock(start.Add(10 * time.Minute)),
	}
	f.coord = NewCoordinator(f.store, f.ledger, f.dir, journal, publisher, f.clock, opts)
	f.service = NewAuctionService(f.coord, f.dir)
	return f
}

func (f *fixture) auction(t *testing.T, minBid float64) model.Auction {
	t.Helper()

	auction, err := f.store.Create(model.AuctionSpec{
		SellerID:        "olivier-123",
		Title:           "1-Hour Live French Coaching Session",
		DurationMinutes: 60,
		MinBid:          minBid,
		StartTime:       start,
	}, start.Add(-time.Hour))
	require.NoError(t, err)
	return auction
}

func (f *fixture) bidder(t *testing.T, name string) string {
	t.Helper()

	user, err := f.dir.Register(model.Profile{Name: name, Email: "bidder@example.com"}, start)
	require.NoError(t, err)
	return user.UserID
}

// holdLane occupies an auction's lane the way an in-flight submission would
func holdLane(t *testing.T, c *Coordinator, auctionID string) func() {
	t.Helper()

	ln := c.checkoutLane(auctionID)
	require.NoError(t, ln.enter(context.Background()))
	return func() { c.leaveLane(ln) }
}

func TestCoordinator_SubmitBid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	alice := f.bidder(t, "Alice")

	upcoming, err := f.store.Create(model.AuctionSpec{SellerID: "s", DurationMinutes: 30, MinBid: 5, StartTime: start.Add(time.Hour)}, start)
	require.NoError(t, err)

	tests := []struct {
		name        string
		auctionID   string
		bidderID    string
		amount      float64
		expectedErr error
	}{
		{name: "missing_auction_id", auctionID: "", bidderID: alice, amount: 30, expectedErr: biddingerrors.ErrInvalidBid},
		{name: "missing_bidder_id", auctionID: auction.AuctionID, bidderID: "", amount: 30, expectedErr: biddingerrors.ErrInvalidBid},
		{name: "zero_amount", auctionID: auction.AuctionID, bidderID: alice, amount: 0, expectedErr: biddingerrors.ErrInvalidBid},
		{name: "nan_amount", auctionID: auction.AuctionID, bidderID: alice, amount: math.NaN(), expectedErr: biddingerrors.ErrInvalidBid},
		{name: "inf_amount", auctionID: auction.AuctionID, bidderID: alice, amount: math.Inf(1), expectedErr: biddingerrors.ErrInvalidBid},
		{name: "negative_inf_amount", auctionID: auction.AuctionID, bidderID: alice, amount: math.Inf(-1), expectedErr: biddingerrors.ErrInvalidBid},
		{name: "unknown_bidder", auctionID: auction.AuctionID, bidderID: "ghost", amount: 30, expectedErr: biddingerrors.ErrUserNotFound},
		{name: "unknown_auction", auctionID: "missing", bidderID: alice, amount: 30, expectedErr: biddingerrors.ErrAuctionNotFound},
		{name: "equal_to_min_bid", auctionID: auction.AuctionID, bidderID: alice, amount: 25, expectedErr: biddingerrors.ErrBidTooLow},
		{name: "not_live_yet", auctionID: upcoming.AuctionID, bidderID: alice, amount: 100, expectedErr: biddingerrors.ErrAuctionNotLive},
		{name: "accepted", auctionID: auction.AuctionID, bidderID: alice, amount: 30},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			admission, err := f.coord.SubmitBid(context.Background(), tc.auctionID, tc.bidderID, tc.amount)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.amount, admission.NewCurrentBid)
			require.Equal(t, "Alice", admission.Bid.BidderName)
			require.Equal(t, f.clock.Now(), admission.Bid.CreatedAt)
		})
	}
}

func TestCoordinator_NonFiniteAmountsLeaveFloorIntact(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Claire")
	ctx := context.Background()

	for _, amount := range []float64{math.NaN(), math.Inf(1)} {
		_, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, amount)
		require.ErrorIs(t, err, biddingerrors.ErrInvalidBid)
	}

	_, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, 1)
	var tooLow *biddingerrors.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 25.0, tooLow.Floor)

	snap, err := f.coord.Snapshot(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, 25.0, snap.Auction.CurrentBid)
	require.Empty(t, snap.Bids)
}

func TestCoordinator_CommitRefusedByLedgerKeepsCurrentBid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)

	// the ledger already holds a higher bid than the store knows about
	require.NoError(t, f.ledger.Append(model.Bid{BidID: "b-high", AuctionID: auction.AuctionID, Amount: 60}))

	admission := model.Admission{
		Bid:           model.Bid{BidID: "b-low", AuctionID: auction.AuctionID, Amount: 40, CreatedAt: f.clock.Now()},
		NewCurrentBid: 40,
	}
	err := f.coord.commit(f.coord.laneFor(auction.AuctionID), admission)
	require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)

	stored, err := f.store.Get(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, 25.0, stored.CurrentBid)
	require.Equal(t, 1, f.ledger.Len(auction.AuctionID))
}

func TestCoordinator_FloorSequence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Claire")
	ctx := context.Background()

	for _, amount := range []float64{38, 42, 45} {
		_, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, amount)
		require.NoError(t, err)
	}

	_, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, 40)
	var tooLow *biddingerrors.BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 45.0, tooLow.Floor)
	require.Equal(t, []float64{46, 51, 56, 66}, tooLow.Suggested)

	admission, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, 46)
	require.NoError(t, err)
	require.Equal(t, 46.0, admission.NewCurrentBid)

	_, err = f.coord.SubmitBid(ctx, auction.AuctionID, bidder, 46)
	require.ErrorAs(t, err, &tooLow)
	require.Equal(t, 46.0, tooLow.Floor)

	snap, err := f.coord.Snapshot(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, 46.0, snap.Auction.CurrentBid)
	require.Len(t, snap.Bids, 4)
	require.Equal(t, 46.0, snap.Bids[0].Amount)
}

func TestCoordinator_NotLiveAfterEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	f.clock.Set(auction.EndTime)

	_, err := f.coord.SubmitBid(context.Background(), auction.AuctionID, bidder, 1000)
	var notLive *biddingerrors.AuctionNotLiveError
	require.ErrorAs(t, err, &notLive)
	require.Equal(t, model.StatusEnded, notLive.Status)

	status, err := f.coord.StatusOf(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEnded, status)
}

// Every bidder keeps outbidding the floor it last saw until accepted
func TestCoordinator_ConcurrentClimb(t *testing.T) {
	t.Parallel()

	const bidders = 25

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)

	ids := make([]string, bidders)
	for i := range ids {
		ids[i] = f.bidder(t, fmt.Sprintf("bidder-%d", i))
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, id := range ids {
		g.Go(func() error {
			for {
				snap, err := f.coord.Snapshot(auction.AuctionID)
				if err != nil {
					return err
				}
				_, err = f.coord.SubmitBid(ctx, auction.AuctionID, id, ledger.Floor(snap.Auction)+1)
				if err == nil {
					return nil
				}
				if !errors.Is(err, biddingerrors.ErrBidTooLow) {
					return err
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	snap, err := f.coord.Snapshot(auction.AuctionID)
	require.NoError(t, err)
	require.Len(t, snap.Bids, bidders)
	require.Equal(t, snap.Bids[0].Amount, snap.Auction.CurrentBid)
	for i := 1; i < len(snap.Bids); i++ {
		require.Greater(t, snap.Bids[i-1].Amount, snap.Bids[i].Amount)
	}
}

// Distinct fixed amounts race once; the highest always wins
func TestCoordinator_ConcurrentFanOut(t *testing.T) {
	t.Parallel()

	const bidders = 40

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	amounts := make([]float64, bidders)
	for i := range amounts {
		amounts[i] = float64(26 + i)
	}
	rand.Shuffle(len(amounts), func(i, j int) { amounts[i], amounts[j] = amounts[j], amounts[i] })

	var accepted, rejected atomic.Int32
	var g errgroup.Group
	for _, amount := range amounts {
		g.Go(func() error {
			_, err := f.coord.SubmitBid(context.Background(), auction.AuctionID, bidder, amount)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, biddingerrors.ErrBidTooLow):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int32(bidders), accepted.Load()+rejected.Load())

	snap, err := f.coord.Snapshot(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, float64(26+bidders-1), snap.Auction.CurrentBid)
	require.Len(t, snap.Bids, int(accepted.Load()))
	for i := 1; i < len(snap.Bids); i++ {
		require.Greater(t, snap.Bids[i-1].Amount, snap.Bids[i].Amount)
	}
}

func TestCoordinator_SnapshotConsistentUnderLoad(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := f.coord.Snapshot(auction.AuctionID)
				if !assert.NoError(t, err) {
					return
				}
				if len(snap.Bids) == 0 {
					assert.Equal(t, snap.Auction.MinBid, snap.Auction.CurrentBid)
					continue
				}
				assert.Equal(t, snap.Bids[0].Amount, snap.Auction.CurrentBid)
			}
		}()
	}

	for amount := 26.0; amount <= 225; amount++ {
		_, err := f.coord.SubmitBid(context.Background(), auction.AuctionID, bidder, amount)
		require.NoError(t, err)
	}
	close(done)
	readers.Wait()
}

func TestCoordinator_LanesAreIndependent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, Options{AcquireTimeout: 20 * time.Millisecond, MaxAttempts: 2, RetryBackoff: 5 * time.Millisecond})
	busy := f.auction(t, 25)
	free := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	release := holdLane(t, f.coord, busy.AuctionID)

	_, err := f.coord.SubmitBid(context.Background(), free.AuctionID, bidder, 30)
	require.NoError(t, err)

	_, err = f.coord.SubmitBid(context.Background(), busy.AuctionID, bidder, 30)
	var contention *biddingerrors.ContentionError
	require.ErrorAs(t, err, &contention)
	require.ErrorIs(t, err, biddingerrors.ErrContention)
	require.Equal(t, 2, contention.Attempts)
	require.Equal(t, 40*time.Millisecond, contention.Waited)

	release()

	_, err = f.coord.SubmitBid(context.Background(), busy.AuctionID, bidder, 30)
	require.NoError(t, err)
}

func TestCoordinator_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, Options{AcquireTimeout: 5 * time.Second, MaxAttempts: 1})
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	release := holdLane(t, f.coord, auction.AuctionID)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := f.coord.SubmitBid(ctx, auction.AuctionID, bidder, 30)
		result <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, biddingerrors.ErrContention)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled submission did not return")
	}

	release()

	require.Equal(t, 0, f.ledger.Len(auction.AuctionID))
	stored, err := f.store.Get(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, 25.0, stored.CurrentBid)
}

func TestCoordinator_JournalFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	journal := repository.NewMockJournal(ctrl)
	publisher := events.NewMockPublisher(ctrl)

	f := newFixture(t, journal, publisher, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	journal.EXPECT().RecordBid(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := f.coord.SubmitBid(context.Background(), auction.AuctionID, bidder, 30)
	require.ErrorIs(t, err, biddingerrors.ErrPersistence)

	require.Equal(t, 0, f.ledger.Len(auction.AuctionID))
	stored, err := f.store.Get(auction.AuctionID)
	require.NoError(t, err)
	require.Equal(t, 25.0, stored.CurrentBid)
}

func TestCoordinator_PublishesAcceptedBid(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	journal := repository.NewMockJournal(ctrl)
	publisher := events.NewMockPublisher(ctrl)

	f := newFixture(t, journal, publisher, DefaultOptions())
	auction := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	journal.EXPECT().RecordBid(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, bid model.Bid) error {
		require.Equal(t, 30.0, bid.Amount)
		require.Equal(t, bidder, bid.BidderID)
		return nil
	})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event model.Event) error {
		require.Equal(t, model.EventBidAccepted, event.Type)
		require.Equal(t, auction.AuctionID, event.AuctionID)
		require.Equal(t, 30.0, event.Amount)
		return errors.New("redis down")
	})

	admission, err := f.coord.SubmitBid(context.Background(), auction.AuctionID, bidder, 30)
	require.NoError(t, err, "publish failures must not reject an admitted bid")
	require.Equal(t, 30.0, admission.NewCurrentBid)
}

func TestCoordinator_ReapLanes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	short, err := f.store.Create(model.AuctionSpec{SellerID: "s", DurationMinutes: 15, MinBid: 5, StartTime: start}, start)
	require.NoError(t, err)
	long := f.auction(t, 25)
	bidder := f.bidder(t, "Alice")

	_, err = f.coord.SubmitBid(context.Background(), short.AuctionID, bidder, 10)
	require.NoError(t, err)
	_, err = f.coord.SubmitBid(context.Background(), long.AuctionID, bidder, 30)
	require.NoError(t, err)
	require.Equal(t, 2, f.coord.LaneCount())

	require.Equal(t, 0, f.coord.ReapLanes())

	f.clock.Set(short.EndTime)
	require.Equal(t, 1, f.coord.ReapLanes())
	require.Equal(t, 1, f.coord.LaneCount())

	// a late submission on the reaped auction is still rejected cleanly
	_, err = f.coord.SubmitBid(context.Background(), short.AuctionID, bidder, 100)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotLive)

	snap, err := f.coord.Snapshot(short.AuctionID)
	require.NoError(t, err)
	require.Len(t, snap.Bids, 1)
}

func TestCoordinator_ReapSkipsPendingLanes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil, DefaultOptions())
	auction := f.auction(t, 25)

	release := holdLane(t, f.coord, auction.AuctionID)
	f.clock.Set(auction.EndTime.Add(time.Minute))

	require.Equal(t, 0, f.coord.ReapLanes())
	release()
	require.Equal(t, 1, f.coord.ReapLanes())
}

func TestCoordinator_ArchiveEnded(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	journal := repository.NewMockJournal(ctrl)
	publisher := events.NewMockPublisher(ctrl)

	f := newFixture(t, journal, publisher, DefaultOptions())
	ended := f.auction(t, 25)
	live, err := f.store.Create(model.AuctionSpec{SellerID: "s", DurationMinutes: 120, MinBid: 5, StartTime: start}, start)
	require.NoError(t, err)

	f.clock.Set(ended.EndTime.Add(time.Minute))

	journal.EXPECT().ArchiveAuction(gomock.Any(), ended.AuctionID, f.clock.Now()).Return(nil)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event model.Event) error {
		require.Equal(t, model.EventAuctionArchived, event.Type)
		require.Equal(t, ended.AuctionID, event.AuctionID)
		return nil
	})

	require.Equal(t, 1, f.coord.ArchiveEnded(context.Background()))
	require.Equal(t, 0, f.coord.ArchiveEnded(context.Background()))

	stored, err := f.store.Get(ended.AuctionID)
	require.NoError(t, err)
	require.NotNil(t, stored.ArchivedAt)

	stillLive, err := f.store.Get(live.AuctionID)
	require.NoError(t, err)
	require.Nil(t, stillLive.ArchivedAt)
}

func TestCoordinator_ArchiveJournalFailureRetriesNextSweep(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	journal := repository.NewMockJournal(ctrl)

	f := newFixture(t, journal, nil, DefaultOptions())
	ended := f.auction(t, 25)
	f.clock.Set(ended.EndTime)

	gomock.InOrder(
		journal.EXPECT().ArchiveAuction(gomock.Any(), ended.AuctionID, gomock.Any()).Return(errors.New("timeout")),
		journal.EXPECT().ArchiveAuction(gomock.Any(), ended.AuctionID, gomock.Any()).Return(nil),
	)

	require.Equal(t, 0, f.coord.ArchiveEnded(context.Background()))
	require.Equal(t, 1, f.coord.ArchiveEnded(context.Background()))
}
