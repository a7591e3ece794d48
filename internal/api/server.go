package api

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"salesdash/internal/logging"
	"salesdash/internal/ui"
)

type ServerOptions struct {
	Debug bool
	// RateLimit is the allowed requests per second per client IP; 0 disables.
	RateLimit float64
}

// NewEcho wires middleware, the page renderer and the routes of h.
func NewEcho(opts ServerOptions, h *Handler) (*echo.Echo, error) {
	renderer, err := ui.NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.Debug = opts.Debug
	e.Renderer = renderer

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestContext)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogRequestID:  true,
		LogError:      true,
		HandleError:   true,
		LogValuesFunc: logRequest,
	}))
	if opts.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimit))))
	}

	h.RegisterRoutes(e)
	return e, nil
}

// requestContext attaches a logger tagged with the request id.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithDefaultLogger(req.Context(), id)))
		return next(c)
	}
}

func logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	fields := []zap.Field{
		zap.String("method", v.Method),
		zap.String("uri", v.URI),
		zap.Int("status", v.Status),
		zap.Duration("latency", v.Latency),
		zap.String("req_id", v.RequestID),
	}
	if v.Error != nil {
		logging.Logger().Error("request", append(fields, zap.Error(v.Error))...)
		return nil
	}
	logging.Logger().Info("request", fields...)
	return nil
}
