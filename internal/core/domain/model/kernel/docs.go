// Package kernel provides the shared value objects of the dispatch domain:
//   - UUID: identifiers for aggregates and their child entities
//   - GeoPoint: WGS84 coordinates with haversine distance (github.com/paulmach/orb/geo)
//   - Clock: an injectable time source so offer expiry and ack windows are testable
//
// Values are immutable and their zero values fail validation.
package kernel
