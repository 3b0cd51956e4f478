package instance

import "github.com/kairos100/swissluca-backend/pkg/env"

// GetID names this process in logs: the platform dyno when present, then
// SWISSLUCA_INSTANCE_ID, then "local".
func GetID() string {
	return env.FirstOf("local", "DYNO", "SWISSLUCA_INSTANCE_ID")
}
