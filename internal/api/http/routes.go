package httpapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-anomaly/internal/common"
	"github.com/i474232898/weather-anomaly/internal/dataset"
	"github.com/i474232898/weather-anomaly/internal/store"
	"github.com/i474232898/weather-anomaly/internal/weather"
)

var validate = validator.New()

// maxCities bounds the cities of one compare or live check request. It must
// match the max tag of citiesRequest.
const maxCities = 50

var errCitiesCount = fmt.Sprintf("cities must list between 1 and %d names", maxCities)

// Deps are the collaborators the routes serve.
type Deps struct {
	Service *weather.Service
	Reports weather.ReportStore

	// DefaultCities is checked by POST /live/check when the request names none.
	DefaultCities []string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	service := deps.Service
	v1 := app.Group("/api/v1")

	v1.Get("/cities", func(c *fiber.Ctx) error {
		cities, err := service.Cities()
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"cities": cities})
	})

	v1.Get("/baselines", func(c *fiber.Ctx) error {
		baselines, err := service.Baselines(c.Query("city"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"baselines": baselines})
	})

	v1.Get("/readings", func(c *fiber.Ctx) error {
		var req readingsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		readings, err := service.Readings(weather.ReadingsQuery{
			City:          req.City,
			From:          req.From,
			To:            req.To,
			AnomaliesOnly: req.AnomaliesOnly,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"city":     req.City,
			"count":    len(readings),
			"readings": readings,
		})
	})

	v1.Get("/cities/:city/summary", func(c *fiber.Ctx) error {
		summary, err := service.Summary(c.Params("city"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(summary)
	})

	v1.Get("/compare", func(c *fiber.Ctx) error {
		req := citiesRequest{Cities: common.SplitList(c.Query("cities"))}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, errCitiesCount)
		}

		summaries, err := service.Compare(req.Cities)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"summaries": summaries})
	})

	live := v1.Group("/live")

	live.Post("/check", func(c *fiber.Ctx) error {
		var req citiesRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		if len(req.Cities) == 0 {
			req.Cities = common.SplitList(c.Query("cities"))
		}
		if len(req.Cities) == 0 {
			req.Cities = deps.DefaultCities
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, errCitiesCount)
		}

		report, err := service.CheckLive(c.UserContext(), req.Cities)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(report)
	})

	live.Get("/latest", func(c *fiber.Ctx) error {
		if deps.Reports == nil {
			return fiber.NewError(fiber.StatusNotFound, "no live checks recorded")
		}
		report, err := deps.Reports.Latest()
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(report)
	})

	live.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if deps.Reports == nil {
			return fiber.NewError(fiber.StatusNotFound, "no live checks recorded")
		}

		outcomes, err := deps.Reports.History(req.City, req.From, req.To)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"city":     req.City,
			"from":     req.From,
			"to":       req.To,
			"outcomes": outcomes,
		})
	})
}

// toHTTPError maps service errors to API status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, weather.ErrNoAnalysis), errors.Is(err, weather.ErrConfig):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, weather.ErrNotFound), errors.Is(err, weather.ErrNoBaseline), errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

type citiesRequest struct {
	Cities []string `json:"cities" validate:"required,min=1,max=50,dive,required"`
}

// rangeQuery holds the optional inclusive time range of a query.
type rangeQuery struct {
	From time.Time
	To   time.Time
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	var err error
	if s := c.Query("from"); s != "" {
		if r.From, err = parseTime(s); err != nil {
			return err
		}
	}
	if s := c.Query("to"); s != "" {
		if r.To, err = parseTime(s); err != nil {
			return err
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return errors.New("to must not be before from")
	}
	return nil
}

// readingsQuery holds query parameters for the readings endpoint.
type readingsQuery struct {
	City string `validate:"required"`
	rangeQuery
	AnomaliesOnly bool
}

func (q *readingsQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	if s := c.Query("anomalies"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return errors.New("anomalies must be a boolean")
		}
		q.AnomaliesOnly = v
	}
	return q.rangeQuery.bind(c)
}

// historyQuery holds query parameters for the live history endpoint.
type historyQuery struct {
	City string `validate:"required"`
	rangeQuery
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.City = c.Query("city")
	return h.rangeQuery.bind(c)
}

// parseTime accepts the dataset timestamp formats or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, bad := dataset.ParseTimestamp(s); !bad && !ts.IsZero() {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}

// ErrorHandler renders errors as a JSON body with the matching status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
