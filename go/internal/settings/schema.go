package settings

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxSlots is the number of RSSI channel profiles a config carries.
const MaxSlots = 8

// Slot field names as they appear in flat keys: rssi[N].<field>
const (
	FieldName             = "name"
	FieldFreq             = "freq"
	FieldPeak             = "peak"
	FieldFilter           = "filter"
	FieldOffsetEnter      = "offset_enter"
	FieldOffsetLeave      = "offset_leave"
	FieldCalibMaxLapCount = "calib_max_lap_count"
	FieldCalibMinRSSIPeak = "calib_min_rssi_peak"
	FieldLEDColor         = "led_color"
)

// Global keys referenced outside this package.
const (
	KeyGameMode = "game_mode"
	KeyLEDNum   = "led_num"
)

// Slot is one RSSI channel profile. It is active iff Freq is non-zero.
type Slot struct {
	Name             string
	Freq             int
	Peak             int
	Filter           int
	OffsetEnter      int
	OffsetLeave      int
	CalibMaxLapCount int
	CalibMinRSSIPeak int
	LEDColor         int
}

// Active reports whether the slot participates in projections and team rosters.
func (s Slot) Active() bool {
	return s.Freq != 0
}

// Config is the typed authoritative configuration.
type Config struct {
	Slots [MaxSlots]Slot

	ELRSUID    string
	OSDX       int
	OSDY       int
	OSDFormat  string
	WifiMode   int
	SSID       string
	Passphrase string
	NodeName   string
	NodeMode   int
	CtrlIPv4   string
	CtrlPort   string
	GameMode   int
	LEDNum     int
}

// ActiveSlots returns the indexes of active slots in ascending order.
func (c Config) ActiveSlots() []int {
	var idx []int
	for i, s := range c.Slots {
		if s.Active() {
			idx = append(idx, i)
		}
	}
	return idx
}

// Default returns the factory configuration.
func Default() Config {
	base := Slot{
		Peak:             900,
		Filter:           60,
		OffsetEnter:      80,
		OffsetLeave:      70,
		CalibMaxLapCount: 3,
		CalibMinRSSIPeak: 600,
		LEDColor:         255,
	}

	var cfg Config
	for i := range cfg.Slots {
		cfg.Slots[i] = base
	}
	cfg.Slots[0].Freq = 5917
	cfg.Slots[0].LEDColor = 14876421
	cfg.Slots[1] = Slot{
		Name:             "FOO",
		Freq:             5923,
		Peak:             999,
		Filter:           66,
		OffsetEnter:      88,
		OffsetLeave:      77,
		CalibMaxLapCount: 3,
		CalibMinRSSIPeak: 666,
		LEDColor:         255,
	}
	cfg.Slots[4].Freq = 5917

	cfg.ELRSUID = "0,0,0,0,0,0"
	cfg.OSDFormat = "%2L: %5.2ts(%6.2ds)"
	cfg.SSID = "clemixfpv"
	cfg.CtrlIPv4 = "0.0.0.0"
	cfg.CtrlPort = "80"
	cfg.LEDNum = 25
	return cfg
}

// SlotKey builds the flat key of a slot field.
func SlotKey(slot int, field string) string {
	return fmt.Sprintf("rssi[%d].%s", slot, field)
}

// slotKeyPattern extracts slot index and field from a flat key.
var slotKeyPattern = regexp.MustCompile(`^rssi\[(\d+)\]\.([a-z_]+)$`)

// ParseSlotKey splits a flat slot key into index and field name.
func ParseSlotKey(key string) (int, string, bool) {
	m := slotKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, "", false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return idx, m[2], true
}

// field binds a flat key to exactly one typed location in a Config.
type field struct {
	key string
	str func(*Config) *string
	num func(*Config) *int
}

func (f field) get(c *Config) any {
	if f.num != nil {
		return *f.num(c)
	}
	return *f.str(c)
}

type slotAccessor struct {
	name string
	str  func(*Slot) *string
	num  func(*Slot) *int
}

var slotAccessors = []slotAccessor{
	{name: FieldName, str: func(s *Slot) *string { return &s.Name }},
	{name: FieldFreq, num: func(s *Slot) *int { return &s.Freq }},
	{name: FieldPeak, num: func(s *Slot) *int { return &s.Peak }},
	{name: FieldFilter, num: func(s *Slot) *int { return &s.Filter }},
	{name: FieldOffsetEnter, num: func(s *Slot) *int { return &s.OffsetEnter }},
	{name: FieldOffsetLeave, num: func(s *Slot) *int { return &s.OffsetLeave }},
	{name: FieldCalibMaxLapCount, num: func(s *Slot) *int { return &s.CalibMaxLapCount }},
	{name: FieldCalibMinRSSIPeak, num: func(s *Slot) *int { return &s.CalibMinRSSIPeak }},
	{name: FieldLEDColor, num: func(s *Slot) *int { return &s.LEDColor }},
}

var globalFields = []field{
	{key: "elrs_uid", str: func(c *Config) *string { return &c.ELRSUID }},
	{key: "osd_x", num: func(c *Config) *int { return &c.OSDX }},
	{key: "osd_y", num: func(c *Config) *int { return &c.OSDY }},
	{key: "osd_format", str: func(c *Config) *string { return &c.OSDFormat }},
	{key: "wifi_mode", num: func(c *Config) *int { return &c.WifiMode }},
	{key: "ssid", str: func(c *Config) *string { return &c.SSID }},
	{key: "passphrase", str: func(c *Config) *string { return &c.Passphrase }},
	{key: "node_name", str: func(c *Config) *string { return &c.NodeName }},
	{key: "node_mode", num: func(c *Config) *int { return &c.NodeMode }},
	{key: "ctrl_ipv4", str: func(c *Config) *string { return &c.CtrlIPv4 }},
	{key: "ctrl_port", str: func(c *Config) *string { return &c.CtrlPort }},
	{key: KeyGameMode, num: func(c *Config) *int { return &c.GameMode }},
	{key: KeyLEDNum, num: func(c *Config) *int { return &c.LEDNum }},
}

// schema lists every accepted key in a stable order.
var schema, schemaIndex = buildSchema()

func buildSchema() ([]field, map[string]field) {
	var fields []field
	for i := 0; i < MaxSlots; i++ {
		for _, acc := range slotAccessors {
			fields = append(fields, slotField(i, acc))
		}
	}
	fields = append(fields, globalFields...)

	index := make(map[string]field, len(fields))
	for _, f := range fields {
		index[f.key] = f
	}
	return fields, index
}

func slotField(i int, acc slotAccessor) field {
	f := field{key: SlotKey(i, acc.name)}
	if acc.num != nil {
		num := acc.num
		f.num = func(c *Config) *int { return num(&c.Slots[i]) }
	} else {
		str := acc.str
		f.str = func(c *Config) *string { return str(&c.Slots[i]) }
	}
	return f
}

// Keys returns every key of the schema.
func Keys() []string {
	keys := make([]string, len(schema))
	for i, f := range schema {
		keys[i] = f.key
	}
	return keys
}

// Flatten renders cfg as the flat key/value map used on the wire and on disk.
func Flatten(cfg Config) map[string]any {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		out[f.key] = f.get(&cfg)
	}
	return out
}
