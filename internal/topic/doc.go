// Package topic models the unit of work (one post to produce), reads topic
// batches from CSV input, and computes the cache fingerprint that makes
// repeated runs idempotent.
package topic
