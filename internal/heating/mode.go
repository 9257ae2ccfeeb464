package heating

// Mode is the global heating mode held by the master mode select.
type Mode string

// Heating modes as offered by the master mode select.
const (
	ModeOff     Mode = "Off"
	ModeAuto    Mode = "Auto"
	ModeHeating Mode = "Heating"
	ModeParty   Mode = "Party"
)

// ParseMode maps a select option to a Mode. Unknown options report false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOff, ModeAuto, ModeHeating, ModeParty:
		return Mode(s), true
	}
	return "", false
}

// String returns the select option for m.
func (m Mode) String() string { return string(m) }

// Schedule suffixes. Each zone has one schedule entity per suffix.
const (
	SuffixStandard = "standard"
	SuffixHoliday  = "holiday"
	SuffixTemp     = "temp"
	SuffixParty    = "party"
	SuffixOff      = "off"
)

// scheduleSuffixes maps a zone's schedule select option to a schedule suffix.
var scheduleSuffixes = map[string]string{
	"Standard":  SuffixStandard,
	"Holiday":   SuffixHoliday,
	"Temporary": SuffixTemp,
	"Party":     SuffixParty,
}

// ScheduleSuffix resolves a zone schedule select option. Anything
// unrecognised (including a missing select) resolves to the off schedule.
func ScheduleSuffix(option string) string {
	if s, ok := scheduleSuffixes[option]; ok {
		return s
	}
	return SuffixOff
}

// AllScheduleSuffixes lists every suffix a zone may resolve to.
func AllScheduleSuffixes() []string {
	return []string{SuffixStandard, SuffixHoliday, SuffixTemp, SuffixParty, SuffixOff}
}
