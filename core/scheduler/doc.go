package scheduler

// Package scheduler drives the simulation engine at a fixed wall-clock
// interval. Each delivered tick carries the time elapsed since the previous
// one, or the nominal interval when fixed stepping is enabled.
