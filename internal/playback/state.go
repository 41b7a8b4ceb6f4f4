package playback

// TriggerID identifies the control that started a speech session, usually
// the bot turn being read.
type TriggerID string

// State is the playback state of a trigger.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Control is a secondary control shown next to the main toggle.
type Control string

const (
	ControlStop    Control = "stop"
	ControlRestart Control = "restart"
)

// Affordance is what a trigger should display for its state.
type Affordance struct {
	Trigger  TriggerID `json:"trigger"`
	State    State     `json:"state"`
	Icon     string    `json:"icon"`
	Tooltip  string    `json:"tooltip"`
	Controls []Control `json:"controls,omitempty"`
}

// ControlLabels holds the icon and tooltip of each secondary control.
var ControlLabels = map[Control][2]string{
	ControlStop:    {"⏹️", "Detener lectura"},
	ControlRestart: {"🔄", "Reiniciar lectura"},
}

// AffordanceFor returns the affordance of trigger in state s.
func AffordanceFor(trigger TriggerID, s State) Affordance {
	switch s {
	case Playing:
		return Affordance{Trigger: trigger, State: s, Icon: "⏸️", Tooltip: "Pausar lectura", Controls: []Control{ControlStop}}
	case Paused:
		return Affordance{Trigger: trigger, State: s, Icon: "▶️", Tooltip: "Continuar lectura", Controls: []Control{ControlRestart, ControlStop}}
	default:
		return Affordance{Trigger: trigger, State: Idle, Icon: "🔊", Tooltip: "Escuchar respuesta"}
	}
}
