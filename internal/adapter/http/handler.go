package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"trackhistory/internal/app/playback"
	"trackhistory/internal/app/ports"
	"trackhistory/internal/app/validate"
	"trackhistory/internal/domain/history"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Handler struct {
	PlaybackUC playback.UseCase
	ValidateUC validate.UseCase
	KPI        kpiSnapshotProvider
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(corsMiddleware())

	api := s.Group("/api/history")
	api.GET("/validate", h.validate)
	api.POST("/sessions", h.load)
	api.DELETE("/sessions/:id", h.close)
	api.GET("/sessions/:id/events", h.events)
	api.GET("/sessions/:id/events/at/:ts", h.eventsAt)
	api.GET("/sessions/:id/reports", h.reportsAt)
	api.GET("/sessions/:id/reports/all", h.allReports)
	api.GET("/sessions/:id/reports/:reportId", h.reportByID)
	api.GET("/sessions/:id/alerts", h.alert)
	api.POST("/sessions/:id/next", h.step(playback.DirectionNext))
	api.POST("/sessions/:id/prev", h.step(playback.DirectionPrev))
	api.POST("/sessions/:id/seek", h.seek)
	api.GET("/sessions/:id/boundary/:direction", h.boundary)
	api.GET("/sessions/:id/adjacent", h.adjacent)
	api.GET("/sessions/:id/current", h.current)
	api.GET("/sessions/:id/devices", h.devices)
	api.PUT("/sessions/:id/devices/:deviceId", h.updateDevice)
	api.PUT("/sessions/:id/playback", h.updatePlayback)

	s.GET("/ops/kpi", h.kpi)
}

var errInvalidParam = errors.New("invalid parameter")

func (h Handler) validate(c context.Context, ctx *app.RequestContext) {
	devices, err := parseDevices(string(ctx.Query("devices")))
	if err != nil {
		writeError(ctx, err)
		return
	}
	start, err := queryInt(ctx, "start")
	if err != nil {
		writeError(ctx, err)
		return
	}
	end, err := queryInt(ctx, "end")
	if err != nil {
		writeError(ctx, err)
		return
	}

	resp, err := h.ValidateUC.Execute(c, validate.Request{Devices: devices, Start: start, End: end})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) load(c context.Context, ctx *app.RequestContext) {
	var body playback.LoadRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	resp, err := h.PlaybackUC.Load(c, body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	status := consts.StatusCreated
	if body.SessionID != "" {
		status = consts.StatusOK
	}
	ctx.JSON(status, resp)
}

func (h Handler) close(c context.Context, ctx *app.RequestContext) {
	if err := h.PlaybackUC.Close(c, playback.CloseRequest{SessionID: ctx.Param("id")}); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(consts.StatusNoContent)
}

func (h Handler) events(c context.Context, ctx *app.RequestContext) {
	resp, err := h.PlaybackUC.Events(c, playback.EventsRequest{
		SessionID: ctx.Param("id"),
		Kind:      history.Kind(strings.TrimSpace(string(ctx.Query("kind")))),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) eventsAt(c context.Context, ctx *app.RequestContext) {
	ts, err := paramInt(ctx, "ts")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.PlaybackUC.EventsAt(c, playback.EventsAtRequest{SessionID: ctx.Param("id"), Timestamp: ts})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) reportByID(c context.Context, ctx *app.RequestContext) {
	reportID, err := paramInt(ctx, "reportId")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.PlaybackUC.ReportByID(c, playback.ReportByIDRequest{SessionID: ctx.Param("id"), ReportID: reportID})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) reportsAt(c context.Context, ctx *app.RequestContext) {
	req := playback.ReportsAtRequest{SessionID: ctx.Param("id")}
	if raw := strings.TrimSpace(string(ctx.Query("at"))); raw != "" {
		at, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(ctx, errInvalidParam)
			return
		}
		req.At = &at
	}
	resp, err := h.PlaybackUC.ReportsAt(c, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) allReports(c context.Context, ctx *app.RequestContext) {
	req := playback.AllReportsRequest{
		SessionID:     ctx.Param("id"),
		WithIntervals: queryBool(ctx, "intervals"),
	}
	if raw := strings.TrimSpace(string(ctx.Query("device"))); raw != "" {
		device, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(ctx, errInvalidParam)
			return
		}
		req.DeviceID = &device
	}
	resp, err := h.PlaybackUC.AllReports(c, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) alert(c context.Context, ctx *app.RequestContext) {
	device, err := queryInt(ctx, "device")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.PlaybackUC.Alert(c, playback.AlertRequest{
		SessionID: ctx.Param("id"),
		DeviceID:  device,
		Kind:      history.Kind(strings.TrimSpace(string(ctx.Query("kind")))),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) step(direction string) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		resp, err := h.PlaybackUC.Step(c, playback.StepRequest{
			SessionID:  ctx.Param("id"),
			Direction:  direction,
			SkipHidden: queryBool(ctx, "skip_hidden"),
		})
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(consts.StatusOK, resp)
	}
}

func (h Handler) seek(c context.Context, ctx *app.RequestContext) {
	to, err := queryInt(ctx, "to")
	if err != nil {
		writeError(ctx, err)
		return
	}
	resp, err := h.PlaybackUC.Seek(c, playback.SeekRequest{SessionID: ctx.Param("id"), To: to})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) boundary(c context.Context, ctx *app.RequestContext) {
	resp, err := h.PlaybackUC.Boundary(c, playback.BoundaryRequest{
		SessionID:  ctx.Param("id"),
		Direction:  ctx.Param("direction"),
		SkipHidden: queryBool(ctx, "skip_hidden"),
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) adjacent(c context.Context, ctx *app.RequestContext) {
	n, _ := strconv.Atoi(string(ctx.Query("n")))
	resp, err := h.PlaybackUC.Adjacent(c, playback.AdjacentRequest{SessionID: ctx.Param("id"), N: n})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) current(c context.Context, ctx *app.RequestContext) {
	resp, err := h.PlaybackUC.Current(c, playback.CurrentRequest{SessionID: ctx.Param("id")})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) devices(c context.Context, ctx *app.RequestContext) {
	resp, err := h.PlaybackUC.Devices(c, playback.DevicesRequest{SessionID: ctx.Param("id")})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) updateDevice(c context.Context, ctx *app.RequestContext) {
	deviceID, err := paramInt(ctx, "deviceId")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var body playback.UpdateDeviceRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	body.SessionID = ctx.Param("id")
	body.DeviceID = deviceID

	resp, err := h.PlaybackUC.UpdateDevice(c, body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) updatePlayback(c context.Context, ctx *app.RequestContext) {
	var body playback.UpdatePlaybackRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	body.SessionID = ctx.Param("id")

	resp, err := h.PlaybackUC.UpdatePlayback(c, body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// parseDevices accepts "1,2,3" and the bracketed "[1,2,3]" form.
func parseDevices(raw string) ([]int64, error) {
	raw = strings.Trim(strings.TrimSpace(raw), "[]")
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errInvalidParam
		}
		out = append(out, id)
	}
	return out, nil
}

func queryInt(ctx *app.RequestContext, key string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(ctx.Query(key))), 10, 64)
	if err != nil {
		return 0, errInvalidParam
	}
	return n, nil
}

func paramInt(ctx *app.RequestContext, key string) (int64, error) {
	n, err := strconv.ParseInt(ctx.Param(key), 10, 64)
	if err != nil {
		return 0, errInvalidParam
	}
	return n, nil
}

func queryBool(ctx *app.RequestContext, key string) bool {
	v, _ := strconv.ParseBool(string(ctx.Query(key)))
	return v
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, errInvalidParam):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_param", err.Error())
	case errors.Is(err, playback.ErrInvalidRequest),
		errors.Is(err, validate.ErrInvalidRequest),
		errors.Is(err, history.ErrInvalidAlertKind):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, playback.ErrSessionNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrUpstream):
		writeErrorBody(ctx, consts.StatusBadGateway, "upstream_error", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
