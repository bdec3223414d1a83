package vessel

import "strconv"

// NavigationStatus is the AIS navigational status code (0..15).
type NavigationStatus int

const (
	UnderwayUsingEngine NavigationStatus = iota
	AtAnchor
	NotUnderCommand
	RestrictedManeuverability
	ConstrainedByDraught
	Moored
	Aground
	EngagedInFishing
	UnderwaySailing
	Reserved9
	Reserved10
	TowingAstern
	PushingAhead
	Reserved13
	AISSART
	Undefined
)

var navStatusNames = [...]string{
	"underway_using_engine",
	"at_anchor",
	"not_under_command",
	"restricted_maneuverability",
	"constrained_by_draught",
	"moored",
	"aground",
	"engaged_in_fishing",
	"underway_sailing",
	"reserved_9",
	"reserved_10",
	"towing_astern",
	"pushing_ahead",
	"reserved_13",
	"ais_sart",
	"undefined",
}

// ParseNavigationStatus maps a raw AIS code; anything outside 0..15 is Undefined.
func ParseNavigationStatus(code int) NavigationStatus {
	if code < 0 || code > int(Undefined) {
		return Undefined
	}
	return NavigationStatus(code)
}

func (s NavigationStatus) String() string {
	if s < 0 || int(s) >= len(navStatusNames) {
		return "navigation_status(" + strconv.Itoa(int(s)) + ")"
	}
	return navStatusNames[s]
}
