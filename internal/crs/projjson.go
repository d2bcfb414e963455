package crs

import "encoding/json"

// PROJJSON returns the PROJJSON definition of the CRS, as embedded in
// GeoParquet column metadata. Unsupported codes return nil.
func PROJJSON(e EPSG) json.RawMessage {
	switch e {
	case EPSG2180:
		return json.RawMessage(projjson2180)
	case EPSG4326:
		return json.RawMessage(projjson4326)
	default:
		return nil
	}
}

const projjson2180 = `{
  "$schema": "https://proj.org/schemas/v0.7/projjson.schema.json",
  "type": "ProjectedCRS",
  "name": "ETRF2000-PL / CS92",
  "base_crs": {
    "name": "ETRF2000-PL",
    "datum": {
      "type": "GeodeticReferenceFrame",
      "name": "ETRF2000 Poland",
      "ellipsoid": {"name": "GRS 1980", "semi_major_axis": 6378137, "inverse_flattening": 298.257222101}
    },
    "coordinate_system": {
      "subtype": "ellipsoidal",
      "axis": [
        {"name": "Geodetic latitude", "abbreviation": "Lat", "direction": "north", "unit": "degree"},
        {"name": "Geodetic longitude", "abbreviation": "Lon", "direction": "east", "unit": "degree"}
      ]
    },
    "id": {"authority": "EPSG", "code": 9702}
  },
  "conversion": {
    "name": "Poland CS92",
    "method": {"name": "Transverse Mercator", "id": {"authority": "EPSG", "code": 9807}},
    "parameters": [
      {"name": "Latitude of natural origin", "value": 0, "unit": "degree", "id": {"authority": "EPSG", "code": 8801}},
      {"name": "Longitude of natural origin", "value": 19, "unit": "degree", "id": {"authority": "EPSG", "code": 8802}},
      {"name": "Scale factor at natural origin", "value": 0.9993, "unit": "unity", "id": {"authority": "EPSG", "code": 8805}},
      {"name": "False easting", "value": 500000, "unit": "metre", "id": {"authority": "EPSG", "code": 8806}},
      {"name": "False northing", "value": -5300000, "unit": "metre", "id": {"authority": "EPSG", "code": 8807}}
    ]
  },
  "coordinate_system": {
    "subtype": "Cartesian",
    "axis": [
      {"name": "Northing", "abbreviation": "x", "direction": "north", "unit": "metre"},
      {"name": "Easting", "abbreviation": "y", "direction": "east", "unit": "metre"}
    ]
  },
  "scope": "Topographic mapping (medium and small scale).",
  "area": "Poland - onshore and offshore.",
  "bbox": {"south_latitude": 49, "west_longitude": 14.14, "north_latitude": 55.93, "east_longitude": 24.15},
  "id": {"authority": "EPSG", "code": 2180}
}`

const projjson4326 = `{
  "$schema": "https://proj.org/schemas/v0.7/projjson.schema.json",
  "type": "GeographicCRS",
  "name": "WGS 84",
  "datum_ensemble": {
    "name": "World Geodetic System 1984 ensemble",
    "members": [
      {"name": "World Geodetic System 1984 (Transit)", "id": {"authority": "EPSG", "code": 1166}},
      {"name": "World Geodetic System 1984 (G730)", "id": {"authority": "EPSG", "code": 1152}},
      {"name": "World Geodetic System 1984 (G873)", "id": {"authority": "EPSG", "code": 1153}},
      {"name": "World Geodetic System 1984 (G1150)", "id": {"authority": "EPSG", "code": 1154}},
      {"name": "World Geodetic System 1984 (G1674)", "id": {"authority": "EPSG", "code": 1155}},
      {"name": "World Geodetic System 1984 (G1762)", "id": {"authority": "EPSG", "code": 1156}},
      {"name": "World Geodetic System 1984 (G2139)", "id": {"authority": "EPSG", "code": 1309}}
    ],
    "ellipsoid": {"name": "WGS 84", "semi_major_axis": 6378137, "inverse_flattening": 298.257223563},
    "accuracy": "2.0",
    "id": {"authority": "EPSG", "code": 6326}
  },
  "coordinate_system": {
    "subtype": "ellipsoidal",
    "axis": [
      {"name": "Geodetic latitude", "abbreviation": "Lat", "direction": "north", "unit": "degree"},
      {"name": "Geodetic longitude", "abbreviation": "Lon", "direction": "east", "unit": "degree"}
    ]
  },
  "scope": "Horizontal component of 3D system.",
  "area": "World.",
  "bbox": {"south_latitude": -90, "west_longitude": -180, "north_latitude": 90, "east_longitude": 180},
  "id": {"authority": "EPSG", "code": 4326}
}`
