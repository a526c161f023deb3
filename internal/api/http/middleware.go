package httpapi

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-anomaly/internal/metrics"
)

// Metrics counts requests by route pattern, method and final status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		metrics.RecordHTTPRequest(c.Route().Path, c.Method(), strconv.Itoa(status))
		return err
	}
}
