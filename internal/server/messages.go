package server

import "github.com/zeusync/spotlight/internal/experiment"

// Engine to runner message types.
const (
	MsgAdvance  = "advance"
	MsgKey      = "key"
	MsgSnapshot = "snapshot"
)

// Runner to engine message types.
const (
	MsgLoadScene  = "load_scene"
	MsgDeactivate = "deactivate"
	MsgLoadEnd    = "load_end"
	MsgInputMode  = "input_mode"
	MsgError      = "error"
)

// Message is the JSON envelope exchanged with the engine.
type Message struct {
	Type     string    `json:"type"`
	Key      string    `json:"key,omitempty"`
	Scene    *int      `json:"scene,omitempty"`
	Mode     *int      `json:"mode,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Snapshot is the spotlight state reported by the engine. An advance message
// may carry one so that the finished trial is captured with fresh values.
type Snapshot struct {
	Position    experiment.Vec3 `json:"position"`
	Orientation experiment.Vec3 `json:"orientation"`
	Intensity   float64         `json:"intensity"`
	Elapsed     float64         `json:"elapsed"`
}
