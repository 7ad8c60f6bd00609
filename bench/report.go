package bench

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Report collects the measurements of one harness run.
type Report struct {
	RunID    ksuid.KSUID
	Started  time.Time
	Finished time.Time
	Results  []Measurement
	// Mismatch is set when a codec decoded values that differ from the built record.
	Mismatch bool
}

// Lookup returns the measurement for the named codec.
func (r *Report) Lookup(codec string) (Measurement, bool) {
	for _, m := range r.Results {
		if m.Codec == codec {
			return m, true
		}
	}
	return Measurement{}, false
}

// Failed reports whether any codec recorded an error.
func (r *Report) Failed() bool {
	for _, m := range r.Results {
		if m.Err != nil {
			return true
		}
	}
	return false
}

// Log writes one line per codec plus a summary line.
func (r *Report) Log(logger zerolog.Logger) {
	run := r.RunID.String()
	for _, m := range r.Results {
		ev := logger.Info()
		if m.Err != nil {
			ev = logger.Error()
		}
		ev.Str("run", run).EmbedObject(m).Msg("measurement")
	}
	summary := logger.Info()
	if r.Mismatch {
		summary = logger.Error()
	}
	summary.Str("run", run).
		Bool("mismatch", r.Mismatch).
		Dur("elapsed", r.Finished.Sub(r.Started)).
		Msg("run complete")
}
