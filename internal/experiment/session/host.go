package session

import "github.com/zeusync/spotlight/internal/experiment/recorder"

// SceneController is how the session asks the host engine to change scenes.
type SceneController interface {
	LoadScene(sceneIndex int) error
	// DeactivateNonCurrentScenes hides the content of every scene except
	// exceptIndex after the shared trial level is loaded.
	DeactivateNonCurrentScenes(exceptIndex int) error
	LoadEndScene() error
}

// Input modes sent to the hand-tracking sensor.
const (
	InputModeSensorRotate    = 0
	InputModeSensorIntensity = 1
	InputModeSensorDisabled  = -5
)

// InputModeSwitcher reconfigures the hand-tracking sensor after a manual
// device/task override.
type InputModeSwitcher interface {
	SetInputMode(mode int) error
}

// Host is everything the session needs from the engine.
type Host interface {
	recorder.SceneSnapshotProvider
	SceneController
	InputModeSwitcher
}
