package ports

type PlaybackMetrics interface {
	RecordLoad(events int)
	RecordLoadFailure()
	RecordStep(direction string)
	RecordAnomalies(n int)
}
