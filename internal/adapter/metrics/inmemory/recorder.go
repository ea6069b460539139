package inmemory

import "sync"

type Snapshot struct {
	LoadTotal     uint64            `json:"load_total"`
	LoadSuccess   uint64            `json:"load_success"`
	LoadFailure   uint64            `json:"load_failure"`
	EventsLoaded  uint64            `json:"events_loaded"`
	StepTotal     uint64            `json:"step_total"`
	StepsByDir    map[string]uint64 `json:"steps_by_direction"`
	AnomalyTotal  uint64            `json:"anomaly_total"`
	LastLoadedLen int               `json:"last_loaded_events"`
}

type Recorder struct {
	mu         sync.Mutex
	success    uint64
	failure    uint64
	events     uint64
	lastLoaded int
	byDir      map[string]uint64
	anomalies  uint64
}

func NewRecorder() *Recorder {
	return &Recorder{
		byDir: map[string]uint64{},
	}
}

func (r *Recorder) RecordLoad(events int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
	r.events += uint64(events)
	r.lastLoaded = events
}

func (r *Recorder) RecordLoadFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failure++
}

func (r *Recorder) RecordStep(direction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDir[direction]++
}

func (r *Recorder) RecordAnomalies(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies += uint64(n)
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Snapshot{
		LoadSuccess:   r.success,
		LoadFailure:   r.failure,
		LoadTotal:     r.success + r.failure,
		EventsLoaded:  r.events,
		StepsByDir:    make(map[string]uint64, len(r.byDir)),
		AnomalyTotal:  r.anomalies,
		LastLoadedLen: r.lastLoaded,
	}
	for k, v := range r.byDir {
		out.StepsByDir[k] = v
		out.StepTotal += v
	}
	return out
}

func (r *Recorder) SnapshotAny() any {
	return r.Snapshot()
}
