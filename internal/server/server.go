// Package server exposes a store over a read-only HTTP API.
//
//	GET /api/tables                          table names
//	GET /api/describe?table=t                column descriptions
//	GET /api/select?table=t&columns=a,b      rows, paged by offset and limit
//	GET /api/tree                            text listing of the store
//	GET /metrics                             prometheus metrics, if enabled
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/frame"
)

// DefaultLimit is the page size of select when no limit is given.
const DefaultLimit = 1000

// MaxLimit is the largest page size select returns.
const MaxLimit = 10 * DefaultLimit

// Handler serves one store.
type Handler struct {
	store *coltab.Store
	log   *zap.Logger
}

func NewHandler(s *coltab.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: s, log: log}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/tables", h.GetTables)
	api.GET("/describe", h.GetDescribe)
	api.GET("/select", h.GetSelect)
	api.GET("/tree", h.GetTree)
}

// New builds the echo instance. A nil gatherer disables /metrics.
func New(s *coltab.Store, log *zap.Logger, gatherer prometheus.Gatherer) *echo.Echo {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = errorHandler(e)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	NewHandler(s, log).RegisterRoutes(e)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return e
}

// Run serves e on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errc := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

// --- HANDLERS ---

func (h *Handler) GetTables(c echo.Context) error {
	tables, err := h.store.Tables()
	if err != nil {
		return err
	}
	if tables == nil {
		tables = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"tables": tables})
}

func (h *Handler) GetDescribe(c echo.Context) error {
	table, err := tableParam(c)
	if err != nil {
		return err
	}
	info, err := h.store.Describe(table)
	if err != nil {
		return err
	}
	n, err := h.store.Len(table)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"table":   table,
		"rows":    n,
		"columns": info,
	})
}

// SelectResponse is the body of /api/select.
type SelectResponse struct {
	Table   string           `json:"table"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
	Columns []string         `json:"columns"`
	Index   []int            `json:"index"`
	Data    map[string][]any `json:"data"`
}

func (h *Handler) GetSelect(c echo.Context) error {
	table, err := tableParam(c)
	if err != nil {
		return err
	}
	limit, offset := getPaginationParams(c, DefaultLimit)

	opts := []coltab.SelectOption{coltab.WithRange(offset, rangeEnd(offset, limit))}
	if cols := c.QueryParam("columns"); cols != "" {
		opts = append(opts, coltab.WithColumns(strings.Split(cols, ",")...))
	}
	if raw, _ := strconv.ParseBool(c.QueryParam("codes")); raw {
		opts = append(opts, coltab.WithoutEnumDecoding())
	}

	total, err := h.store.Len(table)
	if err != nil {
		return err
	}
	f, err := h.store.Select(table, opts...)
	if err != nil {
		return err
	}

	resp := SelectResponse{
		Table:   table,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		Columns: f.Names(),
		Index:   []int{},
		Data:    make(map[string][]any, f.NumCols()),
	}
	if idx := f.Index(); idx != nil {
		for i := 0; i < idx.Len(); i++ {
			resp.Index = append(resp.Index, idx.At(i))
		}
	}
	for _, name := range f.Names() {
		col, _ := f.Column(name)
		resp.Data[name] = values(col)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetTree(c echo.Context) error {
	var b strings.Builder
	if err := h.store.Tree(&b); err != nil {
		return err
	}
	return c.String(http.StatusOK, b.String())
}

func tableParam(c echo.Context) (string, error) {
	table := c.QueryParam("table")
	if table == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "missing table parameter")
	}
	return table, nil
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// rangeEnd is offset+limit, saturating so that the end is never negative.
func rangeEnd(offset, limit int) int {
	if offset > math.MaxInt-limit {
		return math.MaxInt
	}
	return offset + limit
}

// values converts a column to JSON values. Non-finite floats and unset
// categorical rows become null; byte strings are base64 encoded.
func values(col frame.Column) []any {
	out := make([]any, col.Len())
	for i := range out {
		v := col.Value(i)
		switch x := v.(type) {
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				v = nil
			}
		case float32:
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				v = nil
			}
		}
		out[i] = v
	}
	return out
}

// statusOf maps store errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, coltab.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coltab.ErrNotATable):
		return http.StatusBadRequest
	case errors.Is(err, coltab.ErrClosedStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = echo.NewHTTPError(statusOf(err), err.Error())
		}
		e.DefaultHTTPErrorHandler(he, c)
	}
}

// jsonSerializer encodes responses with goccy/go-json.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i any) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
