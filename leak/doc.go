// Package leak implements a sampling leak detector for
// reference-counted native resources: buffers, file handles, sockets,
// or anything else whose owner must call a Close method before the
// value becomes unreachable.
//
// A Detector samples calls to Track, returning a Tracker for sampled
// resources. Callers record touches on the Tracker via Record or
// RecordHint, and must call Close (or CloseResource, which also
// verifies the caller is closing the resource it thinks it is) when
// done. A Tracker whose resource is garbage collected without having
// been closed is reported as a leak, with an access trail if one was
// captured.
package leak
