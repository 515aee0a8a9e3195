// Package cache persists pipeline output per topic fingerprint so repeated
// and resumed batch runs never re-pay for work that already succeeded.
// Entries advance through an ordered stage sequence and never regress;
// the store enforces this monotonicity per key.
package cache
