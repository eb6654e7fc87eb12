// Package series translates between external representations of a time
// series and the internal Observation sequence.
//
// It is the only boundary where absence in a source format is turned into the
// explicit missing marker. No numeric value is ever interpreted as missing, so
// a legitimate data value can never collide with a chosen sentinel.
package series
