package domain

// Classification labels the orbital response of an entity to an event.
type Classification string

const (
	ClassNoImpact       Classification = "no_impact"
	ClassStationKeeping Classification = "station_keeping"
	ClassPermanentDecay Classification = "permanent_decay"
	ClassUndecidable    Classification = "undecidable"
)

// AllClassifications lists classes in rule evaluation order.
var AllClassifications = []Classification{
	ClassNoImpact,
	ClassStationKeeping,
	ClassPermanentDecay,
	ClassUndecidable,
}
