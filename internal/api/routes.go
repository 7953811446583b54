package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/summary", handler.GetSummary)
		api.GET("/listings", handler.GetListings)
		api.GET("/listings/:listing_id", handler.GetListing)
		api.DELETE("/listings/:listing_id", handler.RemoveListing)
		api.GET("/archived", handler.GetArchived)
		api.GET("/communities/:permanent_id/timeline", handler.GetTimeline)
		api.GET("/cities", handler.GetCities)
		api.GET("/cities/:city_id/history", handler.GetCityHistory)
		api.GET("/regions", handler.GetRegions)
		api.POST("/run", handler.RunPass)
		api.POST("/sweep-stale", handler.SweepStale)
	}
}
