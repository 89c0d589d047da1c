package rest

import (
	domainPost "github.com/postpilot/postpilot/domains/post"
	"github.com/postpilot/postpilot/pkg/pubworker"
	"github.com/postpilot/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type MonitoringHandler struct {
	service domainPost.IQueueUsecase
	pool    *pubworker.Pool
}

func InitRestMonitoring(app fiber.Router, service domainPost.IQueueUsecase, pool *pubworker.Pool) {
	h := &MonitoringHandler{service: service, pool: pool}

	app.Get("/queue/stats", h.GetQueueStats)
	app.Get("/scheduler/pool", h.GetPoolStats)
}

func (h *MonitoringHandler) GetQueueStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Queue stats retrieved",
		Results: stats,
	})
}

func (h *MonitoringHandler) GetPoolStats(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pool stats retrieved",
		Results: h.pool.GetStats(),
	})
}
