package history

import (
	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
)

// samplePayload holds two devices: device 1 has an emergency open from 120
// to 200 and a geofence alert opened at 170, device 2 only reports.
func samplePayload() Payload {
	return Payload{
		"report": {
			Template: []string{FieldDeviceID, FieldTimestamp, FieldReportID},
			Data: [][]any{
				{1, 100, 10},
				{1, 150, 11},
				{2, 160, 20},
				{1, 250, 12},
			},
		},
		"emergency": {
			Template: []string{FieldDeviceID, FieldTimestamp, FieldReportID, FieldAlertID, FieldAlertStarted},
			Data: [][]any{
				{1, 120, 10, 7, true},
				{1, 200, 11, 7, false},
			},
		},
		"geofence": {
			Template: []string{FieldDeviceID, FieldTimestamp, FieldReportID, FieldAlertID, FieldAlertStarted, FieldGeofenceID},
			Data: [][]any{
				{1, 170, 11, 3, true, 55},
			},
		},
	}
}

func sampleQuery() Query {
	return Query{Devices: []int64{1, 2}, Start: 100, End: 300}
}

func allVisible(int64) bool { return true }

func memoryLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}
