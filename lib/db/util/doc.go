// Package util provides building blocks shared by record stores and the
// collection engine:
//   - MapHeap: a keyed min-heap, the expiry queue of the ttl manager
//   - LockFreeMPSC: an unbounded multi-producer single-consumer queue that
//     feeds subscription handlers
//   - HashString and GenerateSeed for shard selection
//   - Stats, DistributionStats and SizeHistogram for store info reports
package util
