// Package service contains the monitor's core loop: the reconciler
// turns raw scan observations into inventory updates and events, the
// dispatcher deduplicates and delivers alerts, and the monitor drives
// both on a fixed interval.
package service
