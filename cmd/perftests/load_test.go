package perftests

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Olivier33jnspe/bidmenow/internal/biddingerrors"
)

// LoadScenario defines configurable benchmark parameters
type LoadScenario struct {
	Name            string
	NumUsers        int
	NumAuctions     int
	ReadRatio       int
	MaxBidIncrement int
	Burst           bool // if true, no delay between ops
}

// OperationMetrics collects latencies safely
type OperationMetrics struct {
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(d time.Duration) {
	om.mu.Lock()
	om.latencies = append(om.latencies, d)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (min, max, avg, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	min = latencies[0]
	max = latencies[len(latencies)-1]

	var total time.Duration
	for _, d := range latencies {
		total += d
	}
	avg = total / time.Duration(len(latencies))
	p95 = latencies[int(0.95*float64(len(latencies)))]
	p99 = latencies[int(0.99*float64(len(latencies)))]
	return
}

// Benchmark_Load_AuctionEngine runs multiple scenarios
func Benchmark_Load_AuctionEngine(b *testing.B) {
	scenarios := []LoadScenario{
		{"Low-Contention-WriteHeavy", 200, 200, 0, 50, false},
		{"High-Contention-WriteHeavy", 500, 10, 0, 20, false},
		{"Mixed-Workload", 300, 50, 7, 30, false},
		{"ReadHeavy", 200, 50, 9, 20, false},
		{"Edge-Case-SingleAuction", 100, 1, 5, 10, false},
		{"Peak-Burst", 500, 50, 0, 20, true},
	}

	for _, s := range scenarios {
		b.Run(s.Name, func(b *testing.B) {
			runParallelScenario(b, s)
		})
	}
}

func runParallelScenario(b *testing.B, s LoadScenario) {
	b.ReportAllocs()

	e := setupEngine(b, s.NumAuctions, s.NumUsers)
	ctx := context.Background()

	var totalOps, acceptedBids, rejectedBids, contendedBids, totalReads int64
	auctionAccepted := make([]int64, s.NumAuctions)
	metrics := &OperationMetrics{}

	start := time.Now()

	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			auctionIndex := rnd.Intn(s.NumAuctions)
			auctionID := e.auctions[auctionIndex]
			opType := rnd.Intn(10)

			opStart := time.Now()
			if opType < s.ReadRatio {
				if _, err := e.svc.GetAuction(auctionID); err != nil {
					b.Logf("ignored read error: %v", err)
				}
				atomic.AddInt64(&totalReads, 1)
			} else {
				// outbid the floor as last seen, like a client following suggested bids
				view, err := e.svc.GetAuction(auctionID)
				if err != nil {
					b.Logf("ignored read error: %v", err)
					continue
				}
				bidAmount := view.Floor + float64(1+rnd.Intn(s.MaxBidIncrement))
				bidder := e.bidders[rnd.Intn(len(e.bidders))]

				_, err = e.svc.SubmitBid(ctx, auctionID, bidder, bidAmount)
				switch {
				case err == nil:
					atomic.AddInt64(&acceptedBids, 1)
					atomic.AddInt64(&auctionAccepted[auctionIndex], 1)
				case errors.Is(err, biddingerrors.ErrContention):
					atomic.AddInt64(&contendedBids, 1)
				default:
					atomic.AddInt64(&rejectedBids, 1)
				}
			}

			metrics.Record(time.Since(opStart))
			atomic.AddInt64(&totalOps, 1)

			if !s.Burst {
				time.Sleep(time.Millisecond)
			}
		}
	})

	elapsed := time.Since(start)
	throughput := float64(totalOps) / elapsed.Seconds()
	min, max, avg, p95, p99 := metrics.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	b.Logf(
		"Scenario: %s | Auctions: %d | Total Ops: %d | Accepted: %d | Rejected: %d | Contended: %d | Reads: %d | Elapsed: %s | Throughput: %.2f ops/sec | Latency(us) min: %.2f avg: %.2f max: %.2f p95: %.2f p99: %.2f | Memory Alloc: %.2f MB",
		s.Name, s.NumAuctions, totalOps, acceptedBids, rejectedBids, contendedBids, totalReads, elapsed,
		throughput,
		float64(min.Microseconds()), float64(avg.Microseconds()), float64(max.Microseconds()),
		float64(p95.Microseconds()), float64(p99.Microseconds()),
		float64(mem.Alloc)/1024/1024,
	)

	// every accepted bid is in its auction's history, strictly increasing
	for i, auctionID := range e.auctions {
		history, err := e.svc.GetHistory(auctionID)
		if err != nil {
			b.Fatalf("history for %s: %v", auctionID, err)
		}
		if int64(len(history)) != auctionAccepted[i] {
			b.Fatalf("auction %s: %d bids in history, %d accepted", auctionID, len(history), auctionAccepted[i])
		}
		for j := 1; j < len(history); j++ {
			if history[j-1].Amount <= history[j].Amount {
				b.Fatalf("auction %s: history not strictly increasing at %d", auctionID, j)
			}
		}
	}
}
