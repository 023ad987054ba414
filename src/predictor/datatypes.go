package predictor

import "time"

// actionDataTypes maps a recorded user action to the resource it predicts.
// Actions without an entry never surface in prediction results.
var actionDataTypes = map[string]string{
	"view_pet":            "pet_profile",
	"view_pet_list":       "pet_list",
	"open_health_records": "health_records",
	"view_vaccinations":   "vaccinations",
	"view_medications":    "medications",
	"open_map":            "map_tiles",
	"view_photos":         "photo_gallery",
	"open_reminders":      "reminders",
	"view_lost_pets":      "lost_pet_alerts",
	"open_vet_contacts":   "vet_contacts",
}

// ActionForDataType returns the recorded action that predicts the given
// resource, when one exists.
func ActionForDataType(dataType string) (string, bool) {
	for action, dt := range actionDataTypes {
		if dt == dataType {
			return action, true
		}
	}
	return "", false
}

// CacheDurationFor returns the TTL applied when a prefetched resource lands
// in the cache.
func CacheDurationFor(dataType string) time.Duration {
	if d, ok := cacheDurations[dataType]; ok {
		return d
	}
	return 10 * time.Minute
}

// estimatedSizes gives the expected payload size per resource, used to
// budget prefetch traffic.
var estimatedSizes = map[string]int64{
	"pet_profile":     8 << 10,
	"pet_list":        16 << 10,
	"health_records":  32 << 10,
	"vaccinations":    8 << 10,
	"medications":     8 << 10,
	"map_tiles":       256 << 10,
	"photo_gallery":   512 << 10,
	"reminders":       4 << 10,
	"lost_pet_alerts": 16 << 10,
	"vet_contacts":    4 << 10,
}

// cacheDurations gives the TTL applied when a prefetched resource lands
// in the cache.
var cacheDurations = map[string]time.Duration{
	"pet_profile":     30 * time.Minute,
	"pet_list":        15 * time.Minute,
	"health_records":  time.Hour,
	"vaccinations":    time.Hour,
	"medications":     time.Hour,
	"map_tiles":       10 * time.Minute,
	"photo_gallery":   time.Hour,
	"reminders":       5 * time.Minute,
	"lost_pet_alerts": 2 * time.Minute,
	"vet_contacts":    24 * time.Hour,
}
