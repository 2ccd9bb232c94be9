package provider

import (
	"iter"
	"strings"

	"github.com/papercomputeco/rapport/pkg/llm"
)

// Complete drains events into a single string. An Error event is returned
// as an *UpstreamError; a stream that completes without text returns
// ErrEmptyResponse.
func Complete(events iter.Seq[llm.Event]) (string, error) {
	var sb strings.Builder
	for ev := range llm.Terminated(events) {
		switch ev.Kind {
		case llm.KindText:
			sb.WriteString(ev.Text)
		case llm.KindError:
			return "", &UpstreamError{Message: ev.Message}
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
