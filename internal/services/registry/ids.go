package registry

import (
	"strconv"

	"github.com/mcoot/geoseek/internal/fingerprint"
	"github.com/mcoot/geoseek/internal/model"
)

// SessionIDFor derives the session ID from its name and play area
func SessionIDFor(name string, longitude, latitude, radius float64) model.SessionID {
	return model.SessionID(fingerprint.Of(name + formatFloat(longitude) + formatFloat(latitude) + formatFloat(radius)))
}

// PlayerIDFor derives a player ID, unique to the display name within a session
func PlayerIDFor(displayName string, sessionID model.SessionID) model.PlayerID {
	return model.PlayerID(fingerprint.Of(displayName + string(sessionID)))
}

// formatFloat renders the shortest decimal that round-trips, e.g. 10, 10.5, -122.4324
func formatFloat(f float64) string {
	if f == 0 {
		// -0 renders as "0"
		f = 0
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
