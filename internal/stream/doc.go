// Package stream reconstructs a seekable video from byte ranges of an
// encrypted payload.
//
// The file's segment map (byte offset -> sample count) is partitioned into
// contiguous segments. An Engine fetches segments through a RangeFetcher and
// appends them to the MediaBuffer of an attached Element. A single owner
// goroutine makes every decision: fetches run concurrently and report back on
// a channel, and appends happen on the owner in ascending segment order with
// backpressure from the buffer.
package stream
