// Package stats implements the sliding-window statistics accumulator from
// spec.md §4.J: a fixed window of trend_interval samples over
// {sync_error, correction, drift}, with O(1) running sums maintained by
// subtracting the evicted sample on each insert. Grounded on the same
// fixed-slot, index-wraps-around shape used by internal/ring.
package stats

const (
	// TrendInterval is trend_interval from spec.md §4.J.
	TrendInterval = 3758
	// PrintInterval is print_interval, the cadence for periodic stats
	// log lines; spec.md defines it equal to TrendInterval.
	PrintInterval = TrendInterval
	// framesPerPacket normalizes PPM rates, spec.md's GLOSSARY entry.
	framesPerPacket = 352
)

// Sample is one frame's worth of the three tracked quantities.
type Sample struct {
	SyncError  int32
	Correction int32
	Drift      int32
}

// Window is a fixed-capacity ring of the last TrendInterval samples, with
// running sums kept current in O(1) per insert.
type Window struct {
	samples []Sample
	next    int
	filled  int

	sumSyncError  int64
	sumCorrection int64
	sumDrift      int64

	missingPackets  int
	latePackets     int
	tooLatePackets  int
	resendRequests  int
	minDACQueueLen  int
	minDACQueueSeen bool
	minBufOcc       int
	maxBufOcc       int
	occSeen         bool

	prevSyncError  int32
	prevCorrection int32
	havePrev       bool
}

// NewWindow allocates a Window sized to TrendInterval.
func NewWindow() *Window {
	return &Window{samples: make([]Sample, TrendInterval)}
}

// Observe records one frame's sync error and correction, deriving drift
// as sync_error_t - sync_error_{t-1} - correction_{t-1} per spec.md §4.J,
// and folds it into the sliding window's running sums.
func (w *Window) Observe(syncError, correction int32) {
	var drift int32
	if w.havePrev {
		drift = syncError - w.prevSyncError - w.prevCorrection
	}
	w.prevSyncError = syncError
	w.prevCorrection = correction
	w.havePrev = true

	w.insert(Sample{SyncError: syncError, Correction: correction, Drift: drift})
}

func (w *Window) insert(s Sample) {
	if w.filled == len(w.samples) {
		evicted := w.samples[w.next]
		w.sumSyncError -= int64(evicted.SyncError)
		w.sumCorrection -= int64(evicted.Correction)
		w.sumDrift -= int64(evicted.Drift)
	} else {
		w.filled++
	}
	w.samples[w.next] = s
	w.sumSyncError += int64(s.SyncError)
	w.sumCorrection += int64(s.Correction)
	w.sumDrift += int64(s.Drift)
	w.next = (w.next + 1) % len(w.samples)
}

// RecordMissing/RecordLate/RecordTooLate/RecordResend track the packet
// classification counters spec.md §6 requires in the stats log.
func (w *Window) RecordMissing()      { w.missingPackets++ }
func (w *Window) RecordLate()         { w.latePackets++ }
func (w *Window) RecordTooLate()      { w.tooLatePackets++ }
func (w *Window) RecordResend()       { w.resendRequests++ }

// RecordDACQueueLen tracks the minimum observed DAC queue length.
func (w *Window) RecordDACQueueLen(frames int) {
	if !w.minDACQueueSeen || frames < w.minDACQueueLen {
		w.minDACQueueLen = frames
		w.minDACQueueSeen = true
	}
}

// RecordBufferOccupancy tracks min/max ring occupancy.
func (w *Window) RecordBufferOccupancy(occ int) {
	if !w.occSeen {
		w.minBufOcc, w.maxBufOcc, w.occSeen = occ, occ, true
		return
	}
	if occ < w.minBufOcc {
		w.minBufOcc = occ
	}
	if occ > w.maxBufOcc {
		w.maxBufOcc = occ
	}
}

// Report is a snapshot suitable for the periodic stats log line.
type Report struct {
	AvgSyncError   float64
	CorrectionPPM  float64
	DriftPPM       float64
	MissingPackets int
	LatePackets    int
	TooLatePackets int
	ResendRequests int
	MinDACQueueLen int
	MinBufOcc      int
	MaxBufOcc      int
}

// Snapshot computes the current report. PPM = avg * 1_000_000 / 352 per
// spec.md §4.J.
func (w *Window) Snapshot() Report {
	n := int64(w.filled)
	if n == 0 {
		n = 1
	}
	return Report{
		AvgSyncError:   float64(w.sumSyncError) / float64(n),
		CorrectionPPM:  float64(w.sumCorrection) * 1_000_000 / float64(n) / framesPerPacket,
		DriftPPM:       float64(w.sumDrift) * 1_000_000 / float64(n) / framesPerPacket,
		MissingPackets: w.missingPackets,
		LatePackets:    w.latePackets,
		TooLatePackets: w.tooLatePackets,
		ResendRequests: w.resendRequests,
		MinDACQueueLen: w.minDACQueueLen,
		MinBufOcc:      w.minBufOcc,
		MaxBufOcc:      w.maxBufOcc,
	}
}

// Filled reports how many samples the window currently holds (< TrendInterval
// until the window saturates for the first time).
func (w *Window) Filled() int { return w.filled }
