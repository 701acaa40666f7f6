package api

import (
	"net/http"
	"time"

	models "RegimeFlow/internal/domain/models"
	"RegimeFlow/internal/service/metrics"
	"RegimeFlow/internal/service/ratelimit"
	"RegimeFlow/internal/usecase"
	xhttp "RegimeFlow/pkg/http"
	xlogger "RegimeFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RegimeEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type RegimeEchoHandler struct {
	logger   *xlogger.Logger
	query    *usecase.RegimeQuery
	proc     *usecase.StreamProcessor
	replayer *usecase.Replayer
	rl       *ratelimit.Limiter
}

func NewRegimeEchoHandler(logger *xlogger.Logger, query *usecase.RegimeQuery, proc *usecase.StreamProcessor, replayer *usecase.Replayer) *RegimeEchoHandler {
	metrics.Register()
	return &RegimeEchoHandler{
		logger:   logger,
		query:    query,
		proc:     proc,
		replayer: replayer,
		rl:       ratelimit.New(),
	}
}

func (h *RegimeEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/regime")
	g.GET("/latest", h.Latest)
	g.GET("/history", h.History)
	g.GET("/state", h.State)
	g.POST("/classify", h.Classify)
	g.POST("/replay", h.Replay)
}

func (h *RegimeEchoHandler) Latest(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("latest").Observe(time.Since(start).Seconds()) }()

	rec, err := h.query.Latest(c.Request().Context())
	if err != nil {
		metrics.QueryErrors.WithLabelValues("latest").Inc()
		h.logger.Error("latest query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if rec == nil {
		return xhttp.NotFoundResponse(c, "no records yet")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, rec)
}

func (h *RegimeEchoHandler) History(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("history").Observe(time.Since(start).Seconds()) }()

	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	recs, err := h.query.History(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("history").Inc()
		h.logger.Error("history query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *RegimeEchoHandler) State(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.query.State())
}

func (h *RegimeEchoHandler) Classify(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("classify").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":classify", 10, 5) {
		h.logger.Warn("classify rate_limited", xlogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	req := &models.ClassifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, ok := xhttp.ParseTime(req.Timestamp)
	if !ok {
		return xhttp.BadRequestResponse(c, "timestamp must be RFC3339 or unix seconds")
	}

	rec, err := h.proc.Process(c.Request().Context(), &models.FeatureRow{
		Timestamp: ts,
		VIXLevel:  req.VIXLevel,
		Corr4W:    req.Corr4W,
		RV4W:      req.RV4W,
	})
	if err != nil {
		metrics.QueryErrors.WithLabelValues("classify").Inc()
		h.logger.Error("classify error", xlogger.Error(err))
		return xhttp.BadRequestResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *RegimeEchoHandler) Replay(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.QueryLatency.WithLabelValues("replay").Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":replay", 2, 0.5) {
		h.logger.Warn("replay rate_limited", xlogger.String("remote", c.RealIP()))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	req := &models.ReplayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	recs, err := h.replayer.Replay(c.Request().Context(), from, to, req.Limit)
	if err != nil {
		metrics.QueryErrors.WithLabelValues("replay").Inc()
		h.logger.Error("replay error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func parseRange(fromRaw, toRaw string) (from, to time.Time, err error) {
	if fromRaw != "" {
		var ok bool
		from, ok = xhttp.ParseTime(fromRaw)
		if !ok {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339 or unix seconds")
		}
	}
	to = time.Now().UTC()
	if toRaw != "" {
		var ok bool
		to, ok = xhttp.ParseTime(toRaw)
		if !ok {
			return from, to, echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339 or unix seconds")
		}
	}
	return from, to, nil
}
