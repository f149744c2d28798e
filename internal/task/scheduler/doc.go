// Package scheduler is the timer engine: one recurring interval timer per key.
//
// It only computes trigger times. When a timer fires, the callback is handed
// to a Dispatcher (the task engine) so a slow action never stalls the clock.
//
// Registering a key that already exists replaces the previous timer. Every
// registration carries a version; a fire whose version is no longer current is
// dropped, both at trigger time and again right before the callback runs.
package scheduler
