// Package pipeline drives the capture -> convert -> encode -> mux loop.
//
// A Recorder owns its Source, Encoder and Muxer exclusively and drives them
// from a single goroutine through the states
// Starting -> Running -> Draining -> Finished. The only state shared with
// other goroutines is the Stop flag: control sources (hotkey listener,
// stdin prompt, OS signals) call Stop.Signal and the loop polls
// Stop.Stopped once per iteration. Poll latency is bounded by the frame
// interval, so no condition variables are needed.
//
// Pacing is best effort: when an iteration finishes faster than the target
// frame interval the loop sleeps off the residue, and when it overruns the
// loop simply continues. Lost time is never recovered, so the recording
// underruns the target rate instead of bursting to catch up.
package pipeline
