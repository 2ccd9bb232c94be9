package relay

import (
	"context"
	"io"
	"iter"

	"github.com/papercomputeco/rapport/pkg/llm"
)

// Outcome is how a pumped stream ended.
type Outcome int

const (
	// OutcomeCompleted means the provider finished and the done frame was sent.
	OutcomeCompleted Outcome = iota

	// OutcomeFailed means the provider reported an error.
	OutcomeFailed

	// OutcomeCancelled means the client went away or ctx was cancelled
	// before the stream finished.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Pump forwards events to w as they arrive, appending every text payload
// that reached w to acc. It returns once a terminal event is handled, a
// write fails, or ctx is done. Returning stops the pull, which releases the
// upstream read.
//
// A sequence that ends without a terminal event is reported to the client
// as an error.
func Pump(ctx context.Context, events iter.Seq[llm.Event], w io.Writer, acc *Accumulator) Outcome {
	for ev := range events {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}

		switch ev.Kind {
		case llm.KindText:
			if ev.Text == "" {
				continue
			}
			if err := WriteFrame(w, Frame{Type: FrameText, Text: ev.Text}); err != nil {
				return OutcomeCancelled
			}
			acc.Append(ev.Text)

		case llm.KindDone:
			if err := WriteFrame(w, Frame{Type: FrameDone}); err != nil {
				return OutcomeCancelled
			}
			return OutcomeCompleted

		case llm.KindError:
			_ = WriteFrame(w, Frame{Type: FrameError, Error: ev.Message})
			return OutcomeFailed
		}
	}

	if ctx.Err() != nil {
		return OutcomeCancelled
	}
	_ = WriteFrame(w, Frame{Type: FrameError, Error: llm.UpstreamFailure(ctx, nil).Message})
	return OutcomeFailed
}
