package game

// Mode selects which aggregator is live. It is derived from the game_mode
// setting on every read and never stored on its own.
type Mode int

const (
	ModeRace     Mode = 0
	ModeCTF      Mode = 1
	ModeSpectrum Mode = 2
)

// ModeFromSetting maps the game_mode setting to a Mode. Unknown values select RACE.
func ModeFromSetting(v int) Mode {
	switch Mode(v) {
	case ModeCTF:
		return ModeCTF
	case ModeSpectrum:
		return ModeSpectrum
	default:
		return ModeRace
	}
}

func (m Mode) String() string {
	switch m {
	case ModeCTF:
		return "CTF"
	case ModeSpectrum:
		return "SPECTRUM"
	default:
		return "RACE"
	}
}
