package server

import (
	"net/http"

	handler "github.com/Olivier33jnspe/bidmenow/services/auction/handler"
	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionService handler.AuctionServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestIDMiddleware)     // correlate log lines per request
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(auctionService)

	router.GET("/healthz", func(c *gin.Context) {
		utils.JSONResponse(c, http.StatusOK, gin.H{"ok": true}, "healthy")
	})

	users := router.Group("/users")
	{
		users.POST("", auctionHandler.RegisterUserHandler)
		users.GET("/:user_id", auctionHandler.GetUserHandler)
	}

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("", auctionHandler.ListAuctionsHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bids", auctionHandler.PlaceBidHandler)
	}

	return router
}
