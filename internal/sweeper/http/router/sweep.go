package router

import (
	"github.com/gin-gonic/gin"
	"sweepbridge.com/internal/sweeper/handler"
)

func Cron(api *gin.RouterGroup, h *handler.Sweep, auth gin.HandlerFunc) {
	cron := api.Group("/cron", auth)
	{
		// 不同调度器有的用 GET 有的用 POST
		cron.GET("/sweep", h.Trigger)
		cron.POST("/sweep", h.Trigger)
	}
}
