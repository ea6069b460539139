package gormrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"trackhistory/internal/adapter/repo/gorm/model"
	"trackhistory/internal/app/ports"
	"trackhistory/internal/domain/history"

	"gorm.io/gorm"
)

const appendBatchSize = 500

// HistoryRepo serves history windows from the history_events table. A window
// carries the latest selected row older than its start, the same way the
// upstream history API does.
type HistoryRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepo {
	return HistoryRepo{db: db}
}

func (r HistoryRepo) FetchHistory(ctx context.Context, q history.Query) (history.Payload, error) {
	if len(q.Devices) == 0 {
		return history.Payload{}, nil
	}
	db := dbFromCtx(ctx, r.db)

	var carry []model.HistoryEvent
	err := db.Where("device_id IN ? AND event_timestamp < ?", q.Devices, q.Start).
		Order("event_timestamp DESC, id DESC").
		Limit(1).
		Find(&carry).Error
	if err != nil {
		return nil, fmt.Errorf("%w: fetch carry-over row: %v", ports.ErrUpstream, err)
	}

	var rows []model.HistoryEvent
	err = db.Where("device_id IN ? AND event_timestamp BETWEEN ? AND ?", q.Devices, q.Start, q.End).
		Order("event_timestamp, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: fetch history rows: %v", ports.ErrUpstream, err)
	}

	events := make([]history.Event, 0, len(carry)+len(rows))
	for _, row := range append(carry, rows...) {
		events = append(events, toEvent(row))
	}
	return history.EncodeRows(events), nil
}

func (r HistoryRepo) CountHistory(ctx context.Context, q history.Query) (int64, error) {
	if len(q.Devices) == 0 {
		return 0, nil
	}
	db := dbFromCtx(ctx, r.db)

	var inside int64
	err := db.Model(&model.HistoryEvent{}).
		Where("device_id IN ? AND event_timestamp BETWEEN ? AND ?", q.Devices, q.Start, q.End).
		Count(&inside).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count history rows: %v", ports.ErrUpstream, err)
	}

	var before int64
	err = db.Model(&model.HistoryEvent{}).
		Where("device_id IN ? AND event_timestamp < ?", q.Devices, q.Start).
		Count(&before).Error
	if err != nil {
		return 0, fmt.Errorf("%w: count carry-over rows: %v", ports.ErrUpstream, err)
	}
	if before > 0 {
		inside++
	}
	return inside, nil
}

func (r HistoryRepo) Append(ctx context.Context, events []history.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.HistoryEvent, 0, len(events))
	for _, evt := range events {
		row, err := fromEvent(evt)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return dbFromCtx(ctx, r.db).CreateInBatches(&rows, appendBatchSize).Error
}

func toEvent(row model.HistoryEvent) history.Event {
	evt := history.Event{
		Kind:               history.Kind(row.Event),
		DeviceID:           row.DeviceID,
		Timestamp:          row.EventTimestamp,
		ReportID:           deref(row.ReportID),
		AlertID:            deref(row.AlertID),
		GeofenceID:         deref(row.GeofenceID),
		CargoAlertTypeID:   deref(row.CargoAlertTypeID),
		VehicleAlertTypeID: deref(row.VehicleAlertTypeID),
	}
	if row.AlertStarted != nil {
		evt.AlertStarted = *row.AlertStarted
	}
	if len(row.Attributes) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(row.Attributes, &fields); err == nil && len(fields) > 0 {
			evt.Fields = fields
		}
	}
	return evt
}

func fromEvent(evt history.Event) (model.HistoryEvent, error) {
	row := model.HistoryEvent{
		Event:          string(evt.Kind),
		DeviceID:       evt.DeviceID,
		EventTimestamp: evt.Timestamp,
		ReportID:       nonZero(evt.ReportID),
	}
	if evt.Kind.IsAlert() {
		started := evt.AlertStarted
		row.AlertID = &evt.AlertID
		row.AlertStarted = &started
	}
	switch evt.Kind {
	case history.KindGeofence, history.KindSpeed:
		row.GeofenceID = nonZero(evt.GeofenceID)
	case history.KindCargo:
		row.CargoAlertTypeID = nonZero(evt.CargoAlertTypeID)
	case history.KindVehicle:
		row.VehicleAlertTypeID = nonZero(evt.VehicleAlertTypeID)
	}
	if len(evt.Fields) > 0 {
		b, err := json.Marshal(evt.Fields)
		if err != nil {
			return model.HistoryEvent{}, fmt.Errorf("encode attributes: %w", err)
		}
		row.Attributes = b
	}
	return row, nil
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
