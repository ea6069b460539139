package history

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecodeRows_ShortRowLeavesTrailingFieldsZero(t *testing.T) {
	p := Payload{"geofence": {
		Template: []string{FieldDeviceID, FieldTimestamp, FieldReportID, FieldAlertID, FieldAlertStarted, FieldGeofenceID},
		Data:     [][]any{{4, 500}},
	}}

	got := DecodeRows(p)[KindGeofence]
	if len(got) != 1 {
		t.Fatalf("expected one event, got %d", len(got))
	}
	evt := got[0]
	if evt.DeviceID != 4 || evt.Timestamp != 500 {
		t.Fatalf("unexpected leading fields: %+v", evt)
	}
	if evt.ReportID != 0 || evt.AlertID != 0 || evt.AlertStarted || evt.GeofenceID != 0 {
		t.Fatalf("expected trailing zero values, got %+v", evt)
	}
	if evt.Kind != KindGeofence {
		t.Fatalf("expected kind from group name, got %s", evt.Kind)
	}
}

func TestDecodeRows_CoercesLooseValuesAndKeepsExtraColumns(t *testing.T) {
	p := Payload{"emergency": {
		Template: []string{FieldEvent, FieldDeviceID, FieldTimestamp, FieldAlertID, FieldAlertStarted, "latitude"},
		Data: [][]any{
			{"something-else", float64(9), json.Number("1700000000"), "42", "true", 51.5},
			{"emergency", "9", 1700000005.0, 42, 0, nil},
		},
	}}

	got := DecodeRows(p)[KindEmergency]
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	first := got[0]
	if first.Kind != KindEmergency || first.DeviceID != 9 || first.Timestamp != 1700000000 || first.AlertID != 42 || !first.AlertStarted {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.Fields["latitude"] != 51.5 {
		t.Fatalf("expected extra column kept, got %v", first.Fields)
	}
	second := got[1]
	if second.AlertStarted {
		t.Fatalf("expected 0 to decode as not started")
	}
	if second.Fields != nil {
		t.Fatalf("expected nil extra value to be dropped, got %v", second.Fields)
	}
}

func TestDecodeRows_PreservesRowOrderWithinGroup(t *testing.T) {
	got := DecodeRows(samplePayload())[KindReport]
	want := []int64{100, 150, 160, 250}
	for i, evt := range got {
		if evt.Timestamp != want[i] {
			t.Fatalf("row %d timestamp got=%d want=%d", i, evt.Timestamp, want[i])
		}
	}
}

func TestEncodeRows_DecodesBackToSameGroups(t *testing.T) {
	decoded := DecodeRows(samplePayload())
	decoded[KindReport][0].Fields = map[string]any{"speed": 12.5}

	var flat []Event
	for _, kind := range []Kind{KindReport, KindEmergency, KindGeofence} {
		flat = append(flat, decoded[kind]...)
	}

	again := DecodeRows(EncodeRows(flat))
	if !reflect.DeepEqual(again, decoded) {
		t.Fatalf("round trip mismatch\n got=%+v\nwant=%+v", again, decoded)
	}
}

func TestPayloadLen(t *testing.T) {
	if got := samplePayload().Len(); got != 7 {
		t.Fatalf("payload len got=%d want=7", got)
	}
}
