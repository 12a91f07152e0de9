package http

import (
	"encoding/json"
	"fmt"

	"github.com/NeuralTrust/docsifer/pkg/app/analytics"
	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/NeuralTrust/docsifer/pkg/handlers/http/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type getStatsHandler struct {
	logger    *logrus.Logger
	analytics analytics.Aggregator
}

func NewGetStatsHandler(logger *logrus.Logger, aggregator analytics.Aggregator) Handler {
	return &getStatsHandler{
		logger:    logger,
		analytics: aggregator,
	}
}

// Handle @Summary Get usage statistics
// @Description Access and token counters per period key and label
// @Tags v1
// @Produce json
// @Success 200 {object} stats.Snapshot "Counters"
// @Failure 500 {object} response.ErrorResponse "Stats unavailable"
// @Router /v1/stats [get]
func (h *getStatsHandler) Handle(c *fiber.Ctx) error {
	snapshot := h.analytics.Stats()
	if snapshot.Access == nil {
		snapshot.Access = stats.Counters{}
	}
	if snapshot.Tokens == nil {
		snapshot.Tokens = stats.Counters{}
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return statsFailure(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}

type getStatsSummaryHandler struct {
	logger    *logrus.Logger
	analytics analytics.Aggregator
}

func NewGetStatsSummaryHandler(logger *logrus.Logger, aggregator analytics.Aggregator) Handler {
	return &getStatsSummaryHandler{
		logger:    logger,
		analytics: aggregator,
	}
}

// Handle @Summary Get usage summary
// @Description Per-label totals for the current day, week, month and year
// @Tags v1
// @Produce json
// @Success 200 {object} analytics.Report "Summary"
// @Failure 500 {object} response.ErrorResponse "Stats unavailable"
// @Router /v1/stats/summary [get]
func (h *getStatsSummaryHandler) Handle(c *fiber.Ctx) error {
	report := h.analytics.Summary()
	if report.Access == nil {
		report.Access = []stats.Summary{}
	}
	if report.Tokens == nil {
		report.Tokens = []stats.Summary{}
	}
	body, err := json.Marshal(report)
	if err != nil {
		return statsFailure(c, h.logger, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}

func statsFailure(c *fiber.Ctx, logger *logrus.Logger, err error) error {
	logger.WithError(err).Error("failed to fetch analytics stats")
	return c.Status(fiber.StatusInternalServerError).JSON(response.ErrorResponse{
		Error: fmt.Sprintf("%s%s", response.StatsErrorPrefix, err.Error()),
	})
}
