package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/beach-weather-recommender/internal/weather"
)

var validate = validator.New()

// Options controls boundary-level policies.
type Options struct {
	// StaleOnError serves the last stored snapshot when a single-location fetch fails.
	StaleOnError bool
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, opts Options) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "StrandWetter Deutschland API",
			"version": "1.0.0",
		})
	})

	api := app.Group("/api")

	api.Get("/beaches", func(c *fiber.Ctx) error {
		locs := service.Locations()
		beaches := make([]beachView, 0, len(locs))
		for _, l := range locs {
			beaches = append(beaches, newBeachView(l))
		}
		return c.JSON(fiber.Map{"beaches": beaches})
	})

	api.Get("/beaches/nearest", func(c *fiber.Ctx) error {
		var q coordinateQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, km, err := service.Nearest(q.Lat, q.Lon)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"beach":       newBeachView(loc),
			"distance_km": km,
		})
	})

	api.Get("/weather", func(c *fiber.Ctx) error {
		results := service.AllWeather(c.UserContext())

		out := make(fiber.Map, len(results))
		for _, r := range results {
			if r.Err != nil {
				out[r.Location.ID] = fiber.Map{"error": r.Err.Error()}
				continue
			}
			out[r.Location.ID] = fiber.Map{
				"data":   r.Snapshot,
				"cached": r.Cached,
			}
		}
		return c.JSON(out)
	})

	api.Get("/weather/:id", func(c *fiber.Ctx) error {
		id, err := beachID(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snap, cached, err := service.Weather(c.UserContext(), id)
		if err != nil {
			if opts.StaleOnError && weather.ErrorKind(err) != "not_found" {
				if entry, staleErr := service.Stale(c.UserContext(), id); staleErr == nil {
					return c.JSON(fiber.Map{
						"beach":  id,
						"data":   entry.Snapshot,
						"cached": true,
						"stale":  true,
						"error":  err.Error(),
					})
				}
			}
			return toFiberError(err)
		}

		return c.JSON(fiber.Map{
			"beach":  id,
			"data":   snap,
			"cached": cached,
		})
	})

	api.Get("/weather/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		entries, err := service.History(c.UserContext(), req.ID, req.From, req.To)
		if err != nil {
			if errors.Is(err, weather.ErrNotCached) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return toFiberError(err)
		}

		return c.JSON(fiber.Map{
			"beach":   req.ID,
			"from":    req.From,
			"to":      req.To,
			"entries": entries,
		})
	})

	api.Get("/recommendations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"recommendations": service.Recommend(c.UserContext()),
		})
	})
}

// toFiberError maps the pipeline error taxonomy onto HTTP statuses.
func toFiberError(err error) error {
	var (
		notFound  *weather.NotFoundError
		transport *weather.TransportError
		upstream  *weather.UpstreamError
		parse     *weather.ParseError
	)
	switch {
	case errors.As(err, &notFound):
		return fiber.NewError(fiber.StatusNotFound, "Beach not found")
	case errors.As(err, &transport):
		if transport.Timeout() {
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &upstream), errors.As(err, &parse):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

type coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type beachView struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Coordinates coordinates `json:"coordinates"`
}

func newBeachView(l weather.Location) beachView {
	return beachView{
		ID:          l.ID,
		Name:        l.Name,
		Coordinates: coordinates{Lat: l.Latitude, Lon: l.Longitude},
	}
}

func beachID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if err := validate.Var(id, "required,max=64"); err != nil {
		return "", errors.New("invalid beach id")
	}
	return id, nil
}

// coordinateQuery holds query parameters for the nearest-beach lookup.
type coordinateQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

func (q *coordinateQuery) bind(c *fiber.Ctx) error {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return errors.New("invalid lat")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return errors.New("invalid lon")
	}

	q.Lat, q.Lon = lat, lon
	return validate.Struct(q)
}

// historyQuery holds the parameters for the history endpoint.
type historyQuery struct {
	ID   string    `validate:"required"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	id, err := beachID(c)
	if err != nil {
		return err
	}
	h.ID = id

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
