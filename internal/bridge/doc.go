// Package bridge connects an export driver to the things that watch it.
//
// Tracker folds progress events into a UI-facing State and fans updates out
// to subscribers. Session runs one export end to end: it holds the output
// lock, records the run in history, feeds metrics and sinks, and always
// closes the driver.
//
// Total frame counts are estimates. The encoder reports frames at its own
// rate and nothing here measures it; AssumedFrameRate is a fixed constant.
package bridge
