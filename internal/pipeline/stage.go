package pipeline

import "fmt"

// Stage is a position in the deployment state machine.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageSelecting  Stage = "selecting"
	StageBuilding   Stage = "building"
	StageInstalling Stage = "installing"
	StageLaunching  Stage = "launching"
	StageStreaming  Stage = "streaming"
	StageTerminated Stage = "terminated"
	StageFailed     Stage = "failed"
)

// validTransitions lists the forward edges. Every working stage may also
// move to StageFailed; that edge is checked separately.
var validTransitions = map[Stage][]Stage{
	StageIdle:       {StageSelecting},
	StageSelecting:  {StageBuilding},
	StageBuilding:   {StageInstalling},
	StageInstalling: {StageLaunching},
	StageLaunching:  {StageStreaming},
	StageStreaming:  {StageTerminated},
}

// IsTerminal reports whether s is absorbing.
func (s Stage) IsTerminal() bool {
	return s == StageTerminated || s == StageFailed
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageFailed {
		return from != StageIdle
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the current stage and the stage a failure happened in.
type machine struct {
	current  Stage
	failedAt Stage
	history  []Stage
	onStage  func(Stage)
}

func newMachine(onStage func(Stage)) *machine {
	return &machine{current: StageIdle, history: []Stage{StageIdle}, onStage: onStage}
}

func (m *machine) to(next Stage) error {
	if !CanTransition(m.current, next) {
		return fmt.Errorf("invalid stage transition %s -> %s", m.current, next)
	}
	if next == StageFailed {
		m.failedAt = m.current
	}
	m.current = next
	m.history = append(m.history, next)
	if m.onStage != nil {
		m.onStage(next)
	}
	return nil
}
