package battery

// Package battery holds the leaf physics of the equivalent-circuit model:
// open-circuit voltage lookup, the RC transient stage and coulomb counting.
// Everything here is a pure function of its inputs so it can be exercised
// with synthetic time.
