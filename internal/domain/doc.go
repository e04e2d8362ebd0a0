// Package domain models route conditions: weather and road attributes laid
// over every point of a driving, walking or cycling route.
//
// # Grid Cells
//
// Nearby lookups are deduplicated by snapping coordinates to fixed-size grid
// cells before touching any cache or upstream service:
//
//	weather: 1 km cells  (WeatherCellKm)
//	roads:   0.5 km cells (RoadCellKm)
//
// The latitude step is cellKm / 111.32 degrees. The longitude step is corrected
// for meridian convergence: cellKm / (111.32 · cos(lat)). Both components are
// rounded half-to-even onto their step and rendered at four decimals, so
//
//	GridKey(32.7767, -96.7970, 1.0) == GridKey(32.7769, -96.7968, 1.0)
//
// A [GridCell] keeps the snapped center as numbers; the string key is only a
// rendering of it and is never parsed back.
//
// # Sampling
//
// A decoded route path is sampled sparsely: index 0, the last index and every
// n-th index (default 8). Every other point copies the data of the sample
// nearest to it by sequence position, ties going to the lower index. See
// [SampleIndices] and [NearestSample].
//
// # Cache Keys and Expiry
//
//	weather:<key>     1 h
//	road_grid:<key>   24 h when a road was found, 1 h for a cached "null"
//	roads_bbox:<key>  24 h
//
// Only one coordinate per 0.5 km road cell is queried; every other coordinate
// in the cell shares its answer. Near cell edges that answer may not be the
// true nearest road. This approximation is intentional.
//
// # Road Attributes
//
// Road rows follow the OpenStreetMap shapefile schema (osm_id, code, fclass,
// name, ref, oneway, maxspeed, layer, bridge, tunnel). Surface and condition
// are not stored; they are inferred from the road class and current weather by
// [SummarizeRoad].
package domain
