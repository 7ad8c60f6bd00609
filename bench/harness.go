package bench

import (
	"context"
	"time"

	"codecbench/codec"
	"codecbench/message"
	"codecbench/record"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Dispatcher ships encoded buffers and returns one error slot per buffer, index-aligned.
type Dispatcher func(ctx context.Context, out []message.Outbound) []error

type Harness struct {
	Codecs  []codec.Codec
	Options record.BuildOptions
	Logger  zerolog.Logger
}

// NewHarness measures every codec with the given build options.
func NewHarness(opts record.BuildOptions, logger zerolog.Logger) *Harness {
	return &Harness{
		Codecs:  codec.All(),
		Options: opts,
		Logger:  logger,
	}
}

func (h *Harness) newReport() *Report {
	return &Report{RunID: ksuid.New(), Started: time.Now()}
}

// Run builds the record once, encodes it with every codec and decodes each codec's own
// output. A failure in one codec is recorded on its Measurement and does not stop the others.
// Only an invalid record or a cancelled ctx is returned as an error.
func (h *Harness) Run(ctx context.Context, image []byte) (*Report, error) {
	r, err := record.Build(h.Options, image)
	if err != nil {
		return nil, err
	}
	rep := h.newReport()
	var decoded []*record.Record

	for _, c := range h.Codecs {
		if err := ctx.Err(); err != nil {
			return rep, errors.Wrap(err, "bench run")
		}
		data, enc := EncodeStage(c, r)
		if enc.Err != nil {
			rep.Results = append(rep.Results, enc)
			h.Logger.Error().EmbedObject(enc).Msg("encode failed")
			continue
		}

		view, dec := DecodeStage(c, data)
		dec.EncodeDuration = enc.EncodeDuration
		if dec.Err == nil {
			got, err := view.Materialize()
			if err != nil {
				dec.Err = errors.Wrap(err, "materialize")
				dec.Sentinel = ""
			} else {
				decoded = append(decoded, got)
			}
		}
		rep.Results = append(rep.Results, dec)
	}

	for _, got := range decoded {
		if !got.Equal(r) {
			rep.Mismatch = true
		}
	}
	rep.Finished = time.Now()
	return rep, nil
}

// Produce builds and encodes the record with every codec and hands the buffers to send.
// Send errors are recorded on the matching codec's Measurement.
func (h *Harness) Produce(ctx context.Context, image []byte, send Dispatcher) (*Report, error) {
	r, err := record.Build(h.Options, image)
	if err != nil {
		return nil, err
	}
	rep := h.newReport()

	var out []message.Outbound
	var idx []int
	for _, c := range h.Codecs {
		data, m := EncodeStage(c, r)
		rep.Results = append(rep.Results, m)
		if m.Err != nil {
			continue
		}
		out = append(out, message.Outbound{Codec: c.Name(), Payload: data})
		idx = append(idx, len(rep.Results)-1)
	}
	if err := ctx.Err(); err != nil {
		return rep, errors.Wrap(err, "bench produce")
	}

	errs := send(ctx, out)
	for i, err := range errs {
		if i < len(idx) && err != nil {
			rep.Results[idx[i]].Err = err
		}
	}
	rep.Finished = time.Now()
	return rep, nil
}
