package handler

import (
	"context"
	"fmt"
	"net/http"

	model "github.com/Olivier33jnspe/bidmenow/internal/models"
	"github.com/Olivier33jnspe/bidmenow/services/auction/helpers"
	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, spec model.AuctionSpec) (model.AuctionView, error)
	SubmitBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.Admission, error)
	GetAuction(auctionID string) (model.AuctionView, error)
	GetHistory(auctionID string) ([]model.Bid, error)
	ListAuctions(status model.Status) ([]model.AuctionView, error)
	RegisterUser(ctx context.Context, profile model.Profile) (model.User, error)
	GetUser(userID string) (model.User, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// logFailure logs server faults as errors and client rejections as warnings
func logFailure(handlerName, message string, status int, fields map[string]any) {
	fields["handler"] = handlerName
	fields["http_status"] = status
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": "+message, fields)
		return
	}
	utils.Warn(handlerName+": "+message, fields)
}

// RegisterUserHandler handles POST /users
func (h *AuctionHandler) RegisterUserHandler(c *gin.Context) {
	var req helpers.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterUserHandler", err)
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), req.ToProfile())
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("RegisterUserHandler", "failed to register user", status, map[string]any{"error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewUserResponse(user), "user registered successfully")
	helpers.LogSuccess("RegisterUserHandler", "user registered successfully", map[string]any{"user_id": user.UserID})
}

// GetUserHandler handles GET /users/:user_id
func (h *AuctionHandler) GetUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	user, err := h.service.GetUser(userID)
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("GetUserHandler", "error retrieving user", status, map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewUserResponse(user), "user retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	spec, err := req.ToSpec()
	if err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", fmt.Errorf("start_time: %w", err))
		return
	}

	view, err := h.service.CreateAuction(c.Request.Context(), spec)
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("CreateAuctionHandler", "failed to create auction", status, map[string]any{
			"seller_id": req.SellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(view), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": view.AuctionID,
		"seller_id":  view.SellerID,
	})
}

// ListAuctionsHandler handles GET /auctions?status=
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	status := model.Status(c.Query("status"))
	views, err := h.service.ListAuctions(status)
	if err != nil {
		code := helpers.RespondError(c, err)
		logFailure("ListAuctionsHandler", "error listing auctions", code, map[string]any{"status": status, "error": err.Error()})
		return
	}

	resp := make([]helpers.AuctionResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, helpers.NewAuctionResponse(v))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "auctions retrieved successfully")
	helpers.LogSuccess("ListAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"status": status,
		"count":  len(resp),
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	view, err := h.service.GetAuction(auctionID)
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("GetAuctionHandler", "error retrieving auction", status, map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(view), "auction retrieved successfully")
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetHistory(auctionID)
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("GetBidsHandler", "error retrieving bids", status, map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	admission, err := h.service.SubmitBid(c.Request.Context(), auctionID, req.BidderID, req.Amount)
	if err != nil {
		status := helpers.RespondError(c, err)
		logFailure("PlaceBidHandler", "bid not placed", status, map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount,
			"error":      err.Error(),
		})
		return
	}

	resp := helpers.AdmissionResponse{
		Bid:           helpers.NewBidResponse(admission.Bid),
		NewCurrentBid: admission.NewCurrentBid,
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     admission.Bid.BidID,
		"auction_id": auctionID,
		"bidder_id":  req.BidderID,
		"amount":     admission.NewCurrentBid,
	})
}
