// Package domain models the power-grid infrastructure and flood timesteps that
// drive the dashboard playback.
//
// # Data Source
//
// Snapshots are produced offline by cmd/genstates from a baseline hierarchy
// file (hierarchical_infrastructure.json) and the list of flood-depth tile
// folders. One snapshot exists per flood timestep:
//
//	data/time_series_infrastructure/infrastructure_<key>.json
//	data/flood_tiles/waterdepth_<key>/
//
// # Timestep Keys
//
// Keys use the compact UTC form "YYYYMMDD_HHMMSS", e.g. "20221008_143000".
// Display labels are "2006-01-02 15:04". When no flood folders are available
// the service falls back to a synthesized half-hourly grid for 2022-10-08
// (48 entries).
//
// # Infrastructure Levels
//
//	Level 1: power plants
//	Level 2: substations
//	Level 3: transformers
//	Level 4: communication towers
//
// Cables are GeoJSON LineString features. Coordinates are [lon, lat] pairs;
// altitude is assigned by the flow engine, never by the data files.
//
// # Status
//
// Facilities and cables carry one of "operational", "warning", "high_load" or
// "down". Severity precedence is:
//
//	down > warning = high_load > operational
//
// Unknown strings are treated as operational. [StatusColor] is the only place
// a status is mapped to a color.
package domain
