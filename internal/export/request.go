package export

import (
	"slices"

	"blindtest/internal/filtergraph"
)

// Request is an immutable snapshot of everything an export needs. Build it
// with NewRequest so later changes to the caller's slices are not observed.
type Request struct {
	Countdown    string
	Output       string
	ClipDuration uint32
	Items        []filtergraph.Item
	ExtraArgs    []string
}

// NewRequest copies items and extraArgs into a new Request.
func NewRequest(countdown, output string, clipDuration uint32, items []filtergraph.Item, extraArgs []string) Request {
	return Request{
		Countdown:    countdown,
		Output:       output,
		ClipDuration: clipDuration,
		Items:        slices.Clone(items),
		ExtraArgs:    slices.Clone(extraArgs),
	}
}

// Params returns the filter graph parameters for a probed countdown duration.
func (r Request) Params(countdownDuration uint32) filtergraph.Params {
	return filtergraph.Params{
		ClipDuration:      r.ClipDuration,
		CountdownDuration: countdownDuration,
		Countdown:         r.Countdown,
		Items:             slices.Clone(r.Items),
		Output:            r.Output,
		ExtraArgs:         slices.Clone(r.ExtraArgs),
	}
}
