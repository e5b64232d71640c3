package vaillant

// SystemMode represents the major operating mode of the heating system.
type SystemMode string

// System modes accepted by SetSystemMode.
const (
	SystemModeWinter     SystemMode = "winter"
	SystemModeSummer     SystemMode = "summer"
	SystemModeFrostguard SystemMode = "frostguard"
)

// SetpointMode represents a minor (temporary) mode of the thermostat.
type SetpointMode string

// Setpoint modes accepted by SetMinorMode.
const (
	SetpointModeManual SetpointMode = "manual"
	SetpointModeAway   SetpointMode = "away"
	SetpointModeHWB    SetpointMode = "hwb"
)

// Device represents a Vaillant boiler. It contains one or more modules.
type Device struct {
	ID                      string     `json:"_id"`
	Type                    string     `json:"type"`
	StationName             string     `json:"station_name"`
	Firmware                int        `json:"firmware"`
	SystemMode              SystemMode `json:"system_mode"`
	SetpointDefaultDuration int        `json:"setpoint_default_duration"`
	SetpointHWB             Setpoint   `json:"setpoint_hwb"`
	Modules                 []Module   `json:"modules"`
	Programs                []Program  `json:"therm_program_list"`
}

// Module represents a Vaillant thermostat attached to a device.
type Module struct {
	ID             string   `json:"_id"`
	Type           string   `json:"type"`
	ModuleName     string   `json:"module_name"`
	Firmware       int      `json:"firmware"`
	BatteryPercent int      `json:"battery_percent"`
	SetpointAway   Setpoint `json:"setpoint_away"`
	SetpointManual Setpoint `json:"setpoint_manual"`
	Measured       Measured `json:"measured"`
}

// Setpoint represents a minor mode and its activation status.
type Setpoint struct {
	SetpointActivate bool  `json:"setpoint_activate"`
	SetpointEndtime  int64 `json:"setpoint_endtime,omitempty"`
}

// Measured represents a thermostat measurement snapshot.
type Measured struct {
	Temperature     float64 `json:"temperature"`
	SetpointTemp    float64 `json:"setpoint_temp"`
	EstSetpointTemp float64 `json:"est_setpoint_temp"`
}

// Program represents a weekly heating schedule. The timetable is a list of
// minute offsets from Monday 00:00, each switching to a zone.
type Program struct {
	ID        string     `json:"program_id"`
	Name      string     `json:"name"`
	Selected  bool       `json:"selected"`
	Zones     []Zone     `json:"zones"`
	Timetable []TimeSlot `json:"timetable"`
}

// Zone represents a target temperature a schedule can switch to.
type Zone struct {
	ID   int     `json:"id"`
	Name string  `json:"name,omitempty"`
	Temp float64 `json:"temp,omitempty"`
}

// TimeSlot activates a zone at a minute offset within the week.
type TimeSlot struct {
	// ID is the zone activated by this slot.
	ID int `json:"id"`
	// MOffset is the slot's start, in minutes from Monday 00:00.
	MOffset int `json:"m_offset"`
}

// Home represents a home in the Vaillant system.
type Home struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Rooms []Room `json:"rooms"`
}

// Room represents a room within a home.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
