package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bidding "github.com/Olivier33jnspe/bidmenow/internal/biddingService"
	"github.com/Olivier33jnspe/bidmenow/internal/clock"
	"github.com/Olivier33jnspe/bidmenow/internal/ledger"
	"github.com/Olivier33jnspe/bidmenow/internal/repository"
	"github.com/Olivier33jnspe/bidmenow/internal/server"
	"github.com/Olivier33jnspe/bidmenow/internal/users"
	"github.com/Olivier33jnspe/bidmenow/services/auction/helpers"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// SetupTestRouter wires the full engine in memory behind the router.
func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

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
	return server.SetupRouter(bidding.NewAuctionService(coordinator, directory))
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// RegisterUser registers a user through the API and returns its id
func RegisterUser(t *testing.T, router *gin.Engine, name string) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/users", helpers.RegisterUserRequest{
		Name:  name,
		Email: "learner@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return resp["data"].(map[string]any)["user_id"].(string)
}

// CreateAuction opens an auction through the API that started startOffset from now
func CreateAuction(t *testing.T, router *gin.Engine, sellerID string, minBid float64, startOffset time.Duration, durationMinutes int) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions", helpers.CreateAuctionRequest{
		SellerID:        sellerID,
		Title:           "1-Hour Live French Coaching Session",
		Category:        "Language Learning",
		Tags:            []string{"Conversational", "1-on-1", "Video Call"},
		DurationMinutes: durationMinutes,
		MinBid:          minBid,
		StartTime:       time.Now().Add(startOffset).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, "create auction: %v", resp)
	return resp["data"].(map[string]any)["auction_id"].(string)
}
