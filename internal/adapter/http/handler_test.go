package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	metricsinmem "trackhistory/internal/adapter/metrics/inmemory"
	"trackhistory/internal/app/playback"
	"trackhistory/internal/app/ports"
	"trackhistory/internal/app/validate"
	"trackhistory/internal/domain/history"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"
)

func newTestHandler(source ports.HistorySource) Handler {
	return Handler{
		PlaybackUC: playback.UseCase{
			Source:   source,
			Sessions: playback.NewSessions(time.Hour),
			Logger:   &log.Logger{Handler: memory.New(), Level: log.DebugLevel},
		},
		ValidateUC: validate.UseCase{Sizer: fakeSizer{size: 3500}},
	}
}

func loadSession(t *testing.T, h Handler) string {
	t.Helper()
	ctx := &app.RequestContext{}
	ctx.Request.SetBody([]byte(`{"devices":[1],"start":100,"end":300}`))
	h.load(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusCreated; got != want {
		t.Fatalf("load status got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode load body: %v", err)
	}
	return body.SessionID
}

func TestLoad_InvalidJSON(t *testing.T) {
	h := newTestHandler(fakeSource{})
	ctx := &app.RequestContext{}
	ctx.Request.SetBody([]byte(`{"devices":`))

	h.load(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "invalid_json")
}

func TestLoad_UpstreamFailureMapsToBadGateway(t *testing.T) {
	h := newTestHandler(fakeSource{err: fmt.Errorf("%w: status 503", ports.ErrUpstream)})
	ctx := &app.RequestContext{}
	ctx.Request.SetBody([]byte(`{"devices":[1],"start":100,"end":300}`))

	h.load(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadGateway; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "upstream_error")
}

func TestStep_AdvancesCursor(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	id := loadSession(t, h)

	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}}
	h.step(playback.DirectionNext)(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	var body playback.StepResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode step body: %v", err)
	}
	if !body.Moved || body.Position != 1 || body.CurrentTimestamp != 100 {
		t.Fatalf("unexpected step response: %+v", body)
	}
}

func TestStep_UnknownSession(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: "nope"}}

	h.step(playback.DirectionPrev)(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "session_not_found")
}

func TestReportByID_NotFoundAndBadParam(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	id := loadSession(t, h)

	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}, {Key: "reportId", Value: "404"}}
	h.reportByID(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "not_found")

	ctx = &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}, {Key: "reportId", Value: "abc"}}
	h.reportByID(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "invalid_param")
}

func TestAllReports_ReturnsSynthesizedReports(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	id := loadSession(t, h)

	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}}
	ctx.Request.SetRequestURI("/x?device=1&intervals=true")
	h.allReports(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var body struct {
		Reports []struct {
			Timestamp int64 `json:"event_timestamp"`
			Alerts    map[string]struct {
				Started bool `json:"alert_started"`
			} `json:"alerts"`
		} `json:"reports"`
		Intervals []history.AlertInterval `json:"intervals"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode reports body: %v", err)
	}
	if len(body.Reports) != 4 || len(body.Intervals) != 1 {
		t.Fatalf("got reports=%d intervals=%d want=4/1", len(body.Reports), len(body.Intervals))
	}
	if !body.Reports[2].Alerts[string(history.KindEmergency)].Started {
		t.Fatalf("expected emergency on report at %d", body.Reports[2].Timestamp)
	}

	ctx = &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}}
	ctx.Request.SetRequestURI("/x?device=one")
	h.allReports(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "invalid_param")
}

func TestAlert_ChecksCurrentSnapshot(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	id := loadSession(t, h)

	seek := &app.RequestContext{}
	seek.Params = param.Params{{Key: "id", Value: id}}
	seek.Request.SetRequestURI("/x?to=150")
	h.seek(context.Background(), seek)

	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}}
	ctx.Request.SetRequestURI("/x?device=1&kind=emergency")
	h.alert(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var body playback.AlertResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode alert body: %v", err)
	}
	if !body.Active || !body.HasReport || body.ReportID != 2 {
		t.Fatalf("unexpected alert response: %+v", body)
	}

	ctx = &app.RequestContext{}
	ctx.Params = param.Params{{Key: "id", Value: id}}
	ctx.Request.SetRequestURI("/x?device=1&kind=bogus")
	h.alert(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "bad_request")
}

func TestValidate_ReturnsWarning(t *testing.T) {
	h := newTestHandler(fakeSource{})
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI("/api/history/validate?devices=[1,2]&start=0&end=10")

	h.validate(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var body validate.Response
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode validate body: %v", err)
	}
	if !body.IsValid || body.Type != validate.TypeWarning || body.Size != 3500 {
		t.Fatalf("unexpected validate response: %+v", body)
	}
}

func TestValidate_RejectsBadDevices(t *testing.T) {
	h := newTestHandler(fakeSource{})
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI("/api/history/validate?devices=1,x&start=0&end=10")

	h.validate(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	assertErrorCode(t, ctx, "invalid_param")
}

func TestKPI_NotConfigured(t *testing.T) {
	h := Handler{}
	ctx := &app.RequestContext{}
	h.kpi(context.Background(), ctx)
	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
}

func TestWriteError_UnknownErrorHidesDetails(t *testing.T) {
	ctx := &app.RequestContext{}
	writeError(ctx, errors.New("secret detail"))
	if got, want := ctx.Response.StatusCode(), consts.StatusInternalServerError; got != want {
		t.Fatalf("status got=%d want=%d", got, want)
	}
	if bytes.Contains(ctx.Response.Body(), []byte("secret")) {
		t.Fatalf("internal error leaked: %s", ctx.Response.Body())
	}
}

func TestRoutes_PlaybackFlow(t *testing.T) {
	h := newTestHandler(fakeSource{payload: samplePayload()})
	kpi := metricsinmem.NewRecorder()
	h.PlaybackUC.Metrics = kpi
	h.KPI = kpi
	s := server.Default()
	h.RegisterRoutes(s)

	body := []byte(`{"devices":[1],"start":100,"end":300}`)
	w := ut.PerformRequest(s.Engine, consts.MethodPost, "/api/history/sessions",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	if got, want := resp.StatusCode(), consts.StatusCreated; got != want {
		t.Fatalf("load status got=%d want=%d body=%s", got, want, resp.Body())
	}
	var loaded playback.LoadResponse
	if err := json.Unmarshal(resp.Body(), &loaded); err != nil {
		t.Fatalf("decode load body: %v", err)
	}

	base := "/api/history/sessions/" + loaded.SessionID
	w = ut.PerformRequest(s.Engine, consts.MethodPost, base+"/seek?to=150", nil)
	if got := w.Result().StatusCode(); got != consts.StatusOK {
		t.Fatalf("seek status got=%d body=%s", got, w.Result().Body())
	}

	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/current", nil)
	var current struct {
		Event struct {
			Timestamp int64 `json:"event_timestamp"`
		} `json:"event"`
		Report struct {
			Alerts map[string]struct {
				Started bool `json:"alert_started"`
			} `json:"alerts"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Result().Body(), &current); err != nil {
		t.Fatalf("decode current body: %v", err)
	}
	if current.Event.Timestamp != 150 {
		t.Fatalf("current timestamp got=%d want=150", current.Event.Timestamp)
	}
	if !current.Report.Alerts[string(history.KindEmergency)].Started {
		t.Fatalf("expected emergency on at 150, got %s", w.Result().Body())
	}

	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/events/at/120", nil)
	var at playback.EventsResponse
	if err := json.Unmarshal(w.Result().Body(), &at); err != nil {
		t.Fatalf("decode events body: %v", err)
	}
	if len(at.Events) != 1 || at.Events[0].Kind != history.KindEmergency {
		t.Fatalf("unexpected events at 120: %+v", at.Events)
	}

	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/reports/all", nil)
	var all playback.AllReportsResponse
	if err := json.Unmarshal(w.Result().Body(), &all); err != nil {
		t.Fatalf("decode all reports body: %v", err)
	}
	if len(all.Reports) != 4 {
		t.Fatalf("all reports got=%d want=4 body=%s", len(all.Reports), w.Result().Body())
	}
	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/reports/2", nil)
	if got := w.Result().StatusCode(); got != consts.StatusOK {
		t.Fatalf("report by id status got=%d", got)
	}
	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/alerts?device=1&kind=speed", nil)
	if got := w.Result().StatusCode(); got != consts.StatusOK {
		t.Fatalf("alerts status got=%d body=%s", got, w.Result().Body())
	}

	w = ut.PerformRequest(s.Engine, consts.MethodDelete, base, nil)
	if got := w.Result().StatusCode(); got != consts.StatusNoContent {
		t.Fatalf("delete status got=%d", got)
	}
	w = ut.PerformRequest(s.Engine, consts.MethodGet, base+"/current", nil)
	if got := w.Result().StatusCode(); got != consts.StatusNotFound {
		t.Fatalf("closed session status got=%d", got)
	}

	w = ut.PerformRequest(s.Engine, consts.MethodGet, "/ops/kpi", nil)
	var snapshot metricsinmem.Snapshot
	if err := json.Unmarshal(w.Result().Body(), &snapshot); err != nil {
		t.Fatalf("decode kpi body: %v", err)
	}
	if snapshot.LoadSuccess != 1 || snapshot.EventsLoaded != 4 {
		t.Fatalf("unexpected kpi snapshot: %+v", snapshot)
	}
}

func assertErrorCode(t *testing.T, ctx *app.RequestContext, want string) {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != want {
		t.Fatalf("error code got=%q want=%q", body.Error.Code, want)
	}
}

func samplePayload() history.Payload {
	return history.Payload{
		"report": {
			Template: []string{history.FieldDeviceID, history.FieldTimestamp, history.FieldReportID},
			Data:     [][]any{{1, 100, 1}, {1, 150, 2}},
		},
		"emergency": {
			Template: []string{history.FieldDeviceID, history.FieldTimestamp, history.FieldReportID, history.FieldAlertID, history.FieldAlertStarted},
			Data:     [][]any{{1, 120, 1, 9, true}, {1, 200, 2, 9, false}},
		},
	}
}

type fakeSource struct {
	payload history.Payload
	err     error
}

func (s fakeSource) FetchHistory(_ context.Context, _ history.Query) (history.Payload, error) {
	return s.payload, s.err
}

type fakeSizer struct {
	size int64
}

func (s fakeSizer) CountHistory(_ context.Context, _ history.Query) (int64, error) {
	return s.size, nil
}
