package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trackhistory/internal/app/ports"
	"trackhistory/internal/domain/history"

	"github.com/apex/log"
)

var (
	ErrInvalidRequest  = errors.New("invalid playback request")
	ErrSessionNotFound = errors.New("playback session not found")
)

type UseCase struct {
	Source    ports.HistorySource
	TxManager ports.TxManager
	Sessions  *Sessions
	Metrics   ports.PlaybackMetrics
	Logger    log.Interface
}

// Load fetches the history window and builds a new engine. With a session id
// the session engine is replaced only when the load succeeds.
func (u UseCase) Load(ctx context.Context, req LoadRequest) (LoadResponse, error) {
	if len(req.Devices) == 0 || req.End < req.Start {
		return LoadResponse{}, ErrInvalidRequest
	}
	q := history.Query{Devices: req.Devices, Start: req.Start, End: req.End}

	payload, err := u.fetch(ctx, q)
	if err != nil {
		u.recordLoadFailure()
		u.logger().WithError(err).WithFields(log.Fields{
			"devices": req.Devices,
			"start":   req.Start,
			"end":     req.End,
		}).Error("history fetch failed")
		return LoadResponse{}, err
	}

	engine := history.NewEngine(history.WithLogger(u.logger()))
	if err := engine.Load(q, payload); err != nil {
		u.recordLoadFailure()
		return LoadResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Metrics != nil {
		u.Metrics.RecordLoad(len(engine.Events()))
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = u.Sessions.create(engine)
	} else if err := u.Sessions.replace(id, engine); err != nil {
		return LoadResponse{}, err
	}
	return loadResponse(id, engine), nil
}

func (u UseCase) fetch(ctx context.Context, q history.Query) (history.Payload, error) {
	if u.TxManager == nil {
		return u.Source.FetchHistory(ctx, q)
	}
	var payload history.Payload
	err := u.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := u.Source.FetchHistory(txCtx, q)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	return payload, err
}

func loadResponse(id string, engine *history.Engine) LoadResponse {
	out := LoadResponse{
		SessionID:        id,
		State:            engine.State(),
		Events:           len(engine.Events()),
		Devices:          engine.PlayOptions().Device,
		ShowHideNoEvents: engine.ShowHideNoEvents(),
	}
	if ts, ok := engine.Cursor().FirstReportTimestamp(); ok {
		out.FirstTimestamp = &ts
	}
	return out
}

func (u UseCase) Events(_ context.Context, req EventsRequest) (EventsResponse, error) {
	var out EventsResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		if req.Kind == "" {
			out.Events = engine.Events()
			return nil
		}
		out.Events = engine.EventsByKind(req.Kind)
		if out.Events == nil {
			out.Events = []history.Event{}
		}
		return nil
	})
	return out, err
}

func (u UseCase) EventsAt(_ context.Context, req EventsAtRequest) (EventsResponse, error) {
	var out EventsResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		out.Events = engine.EventsAt(req.Timestamp)
		if out.Events == nil {
			out.Events = []history.Event{}
		}
		return nil
	})
	return out, err
}

func (u UseCase) ReportByID(_ context.Context, req ReportByIDRequest) (ReportByIDResponse, error) {
	var out ReportByIDResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		r, ok := engine.ReportByID(req.ReportID)
		if !ok {
			return fmt.Errorf("report %d: %w", req.ReportID, ports.ErrNotFound)
		}
		out.Report = r
		return nil
	})
	return out, err
}

func (u UseCase) ReportsAt(_ context.Context, req ReportsAtRequest) (ReportsAtResponse, error) {
	var out ReportsAtResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		if req.At == nil {
			out.Timestamp = engine.Cursor().CurrentTimestamp()
			out.Reports = engine.CurrentDeviceReports()
			return nil
		}
		out.Timestamp = *req.At
		out.Reports = engine.ReportsAt(*req.At)
		return nil
	})
	return out, err
}

// AllReports returns the reports synthesized at load, one per loaded event,
// optionally limited to one device and with the alert intervals attached.
func (u UseCase) AllReports(_ context.Context, req AllReportsRequest) (AllReportsResponse, error) {
	var out AllReportsResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		out.Reports = []history.Report{}
		for _, r := range engine.Reports() {
			if req.DeviceID != nil && r.DeviceID != *req.DeviceID {
				continue
			}
			out.Reports = append(out.Reports, r.Clone())
		}
		if !req.WithIntervals {
			return nil
		}
		out.Intervals = []history.AlertInterval{}
		intervals := engine.Intervals()
		for _, kind := range history.AlertKinds {
			for _, iv := range intervals.List(kind) {
				if req.DeviceID != nil && iv.DeviceID != *req.DeviceID {
					continue
				}
				out.Intervals = append(out.Intervals, iv)
			}
		}
		return nil
	})
	return out, err
}

// Alert tells whether an alert kind is active on the current snapshot of a
// device. A device without a snapshot yet has no active alert.
func (u UseCase) Alert(_ context.Context, req AlertRequest) (AlertResponse, error) {
	out := AlertResponse{DeviceID: req.DeviceID, Kind: req.Kind}
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		if _, ok := engine.DeviceOptions(req.DeviceID); !ok {
			return fmt.Errorf("device %d: %w", req.DeviceID, ports.ErrNotFound)
		}
		var current *history.Report
		if r, ok := engine.Cursor().DeviceReport(req.DeviceID); ok {
			current = &r
			out.ReportID = r.ReportID
			out.HasReport = true
		}
		active, err := history.HasAlertCheckForReport(current, req.Kind)
		if err != nil {
			return err
		}
		out.Active = active
		out.CurrentTimestamp = engine.Cursor().CurrentTimestamp()
		return nil
	})
	return out, err
}

func (u UseCase) Step(_ context.Context, req StepRequest) (StepResponse, error) {
	if req.Direction != DirectionNext && req.Direction != DirectionPrev {
		return StepResponse{}, ErrInvalidRequest
	}
	var out StepResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		anomalies := engine.Cursor().Anomalies()

		skip := req.SkipHidden || engine.AutoSkip()

		var step history.Step
		var moved bool
		if req.Direction == DirectionNext {
			step, moved = engine.Next(skip)
		} else {
			step, moved = engine.Prev(skip)
		}

		out.Moved = moved
		if moved {
			out.Event = &step.Event
			if step.HasReport {
				out.Report = &step.Report
			}
		}
		out.Position = engine.Cursor().Position()
		out.CurrentTimestamp = engine.Cursor().CurrentTimestamp()
		out.State = engine.State()

		if u.Metrics != nil {
			u.Metrics.RecordStep(req.Direction)
			if n := engine.Cursor().Anomalies() - anomalies; n > 0 {
				u.Metrics.RecordAnomalies(n)
			}
		}
		return nil
	})
	return out, err
}

func (u UseCase) Seek(_ context.Context, req SeekRequest) (SeekResponse, error) {
	var out SeekResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		anomalies := engine.Cursor().Anomalies()
		out.Moved = engine.SeekTo(req.To)
		out.Position = engine.Cursor().Position()
		out.CurrentTimestamp = engine.Cursor().CurrentTimestamp()
		out.State = engine.State()
		if u.Metrics != nil {
			if n := engine.Cursor().Anomalies() - anomalies; n > 0 {
				u.Metrics.RecordAnomalies(n)
			}
		}
		return nil
	})
	return out, err
}

func (u UseCase) Boundary(_ context.Context, req BoundaryRequest) (BoundaryResponse, error) {
	if req.Direction != DirectionNext && req.Direction != DirectionPrev {
		return BoundaryResponse{}, ErrInvalidRequest
	}
	var out BoundaryResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		skip := req.SkipHidden || engine.AutoSkip()

		var evt history.Event
		if req.Direction == DirectionNext {
			evt, out.Found = engine.NextReport(skip)
		} else {
			evt, out.Found = engine.PreviousReport(skip)
		}
		if out.Found {
			out.Event = &evt
		}
		return nil
	})
	return out, err
}

func (u UseCase) Adjacent(_ context.Context, req AdjacentRequest) (EventsResponse, error) {
	var out EventsResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		out.Events = engine.AdjacentEvents(req.N)
		return nil
	})
	return out, err
}

func (u UseCase) Current(_ context.Context, req CurrentRequest) (CurrentResponse, error) {
	var out CurrentResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		cursor := engine.Cursor()
		if evt, ok := cursor.CurrentEvent(); ok {
			out.Event = &evt
		}
		if r, ok := cursor.CurrentReport(); ok {
			out.Report = &r
			out.VehicleAlerts = history.VehicleAlertTypeIDs(r)
		}
		if r, ok := cursor.PastReport(); ok {
			out.PastReport = &r
		}
		out.Position = cursor.Position()
		out.Total = cursor.Len()
		out.CurrentTimestamp = cursor.CurrentTimestamp()
		out.State = engine.State()
		out.FollowedDevices = engine.FollowedDevices()
		out.PlaySpeed = engine.PlaySpeed()
		out.Anomalies = cursor.Anomalies()
		return nil
	})
	return out, err
}

func (u UseCase) Devices(_ context.Context, req DevicesRequest) (DevicesResponse, error) {
	var out DevicesResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		out = devicesResponse(engine)
		return nil
	})
	return out, err
}

func (u UseCase) UpdateDevice(_ context.Context, req UpdateDeviceRequest) (DevicesResponse, error) {
	if req.ShowTrail == nil && req.ShowTracks == nil {
		return DevicesResponse{}, ErrInvalidRequest
	}
	var out DevicesResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		if _, ok := engine.DeviceOptions(req.DeviceID); !ok {
			return fmt.Errorf("device %d: %w", req.DeviceID, ports.ErrNotFound)
		}
		if req.ShowTrail != nil {
			if err := engine.SetDeviceTrail(req.DeviceID, *req.ShowTrail); err != nil {
				return err
			}
		}
		if req.ShowTracks != nil {
			if err := engine.SetDeviceTracks(req.DeviceID, *req.ShowTracks); err != nil {
				return err
			}
		}
		out = devicesResponse(engine)
		return nil
	})
	return out, err
}

func devicesResponse(engine *history.Engine) DevicesResponse {
	return DevicesResponse{
		Devices:          engine.PlayOptions().Device,
		WithEvents:       engine.DevicesWithEvents(),
		ShowHideNoEvents: engine.ShowHideNoEvents(),
	}
}

func (u UseCase) UpdatePlayback(_ context.Context, req UpdatePlaybackRequest) (PlaybackResponse, error) {
	if req.PlaySpeed != nil && *req.PlaySpeed <= 0 {
		return PlaybackResponse{}, ErrInvalidRequest
	}
	for kind := range req.Events {
		if kind != history.KindReport && !kind.IsAlert() {
			return PlaybackResponse{}, fmt.Errorf("%w: unknown event kind %q", ErrInvalidRequest, kind)
		}
	}
	var out PlaybackResponse
	err := u.Sessions.with(req.SessionID, func(engine *history.Engine) error {
		if req.PlaySpeed != nil {
			engine.SetPlaySpeed(*req.PlaySpeed)
		}
		if req.AutoSkip != nil {
			engine.SetAutoSkip(*req.AutoSkip)
		}
		for kind, on := range req.Events {
			engine.SetEventVisible(kind, on)
		}
		out = PlaybackResponse{Options: engine.PlayOptions(), PlaySpeed: engine.PlaySpeed()}
		return nil
	})
	return out, err
}

func (u UseCase) Close(_ context.Context, req CloseRequest) error {
	if !u.Sessions.remove(req.SessionID) {
		return ErrSessionNotFound
	}
	return nil
}

func (u UseCase) recordLoadFailure() {
	if u.Metrics != nil {
		u.Metrics.RecordLoadFailure()
	}
}

func (u UseCase) logger() log.Interface {
	if u.Logger == nil {
		return log.Log
	}
	return u.Logger
}
