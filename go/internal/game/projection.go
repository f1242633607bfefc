package game

import (
	"github.com/mcdev12/gatetimer/go/internal/settings"
)

// SettingsPath is the node endpoint receiving config projections.
const SettingsPath = "/api/v1/settings"

// projectedFields are the slot fields a node needs to detect and display laps.
var projectedFields = []string{
	settings.FieldName,
	settings.FieldFreq,
	settings.FieldPeak,
	settings.FieldFilter,
	settings.FieldOffsetEnter,
	settings.FieldOffsetLeave,
	settings.FieldLEDColor,
}

// ctfProjection gives every node the full roster: all active slots under
// their own indexes.
func ctfProjection(cfg settings.Config) map[string]any {
	flat := settings.Flatten(cfg)
	out := globals(flat)
	for _, i := range cfg.ActiveSlots() {
		for _, f := range projectedFields {
			key := settings.SlotKey(i, f)
			out[key] = flat[key]
		}
	}
	return out
}

// raceProjection remaps slot idx onto slot 0: in a race every node is its
// own channel 0. Nodes without an active slot get the globals only.
func raceProjection(cfg settings.Config, idx int) map[string]any {
	flat := settings.Flatten(cfg)
	out := globals(flat)
	if idx < 0 || idx >= settings.MaxSlots || !cfg.Slots[idx].Active() {
		return out
	}
	for _, f := range projectedFields {
		out[settings.SlotKey(0, f)] = flat[settings.SlotKey(idx, f)]
	}
	return out
}

func globals(flat map[string]any) map[string]any {
	return map[string]any{
		settings.KeyGameMode: flat[settings.KeyGameMode],
		settings.KeyLEDNum:   flat[settings.KeyLEDNum],
	}
}
