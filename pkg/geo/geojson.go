package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NagiElgarhi/view-tours/pkg/model"
)

// NearbyCollection renders a nearby-landmark pool as a GeoJSON
// FeatureCollection for map display. Entries without coordinates are
// skipped; the center point, when known, is included with kind=center.
func NearbyCollection(center *Point, landmarks []model.NearbyLandmark) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if center != nil {
		f := geojson.NewFeature(center.ToOrb())
		f.Properties["kind"] = "center"
		fc.Append(f)
	}

	for i, lm := range landmarks {
		if lm.Lat == 0 && lm.Lon == 0 {
			continue
		}
		f := geojson.NewFeature(orb.Point{lm.Lon, lm.Lat})
		f.Properties["kind"] = "nearby"
		f.Properties["index"] = i
		f.Properties["name"] = lm.Name
		f.Properties["distance_km"] = lm.Distance
		f.Properties["direction"] = lm.Direction
		if lm.Brief != "" {
			f.Properties["brief"] = lm.Brief
		}
		fc.Append(f)
	}

	return fc
}
