package domain

const (
	testPolygon = `{"type":"Polygon","coordinates":[[[-120.5,38.1],[-120.4,38.1],[-120.4,38.2],[-120.5,38.2],[-120.5,38.1]]]}`
	testFeature = `{"type":"Feature","properties":{"name":"burn scar"},"geometry":` + testPolygon + `}`
	testFC      = `{"type":"FeatureCollection","features":[` + testFeature + `,{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[[[[-121.0,38.0],[-120.9,38.0],[-120.9,38.1],[-121.0,38.0]]]]}}]}`
)
