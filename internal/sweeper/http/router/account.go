package router

import (
	"github.com/gin-gonic/gin"
	"sweepbridge.com/internal/sweeper/handler"
)

func Account(api *gin.RouterGroup, h *handler.Account, auth gin.HandlerFunc) {
	accounts := api.Group("/accounts", auth)
	{
		accounts.GET("/:address/history", h.History)
	}
}

func Status(api *gin.RouterGroup, h *handler.Status) {
	status := api.Group("/status")
	{
		status.GET("/heartbeat", h.Heartbeat)
	}
}
