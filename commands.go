package stepseq

import (
	"fmt"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// Command is a UI action applied with Dispatch.
type Command interface {
	command()
}

type (
	PlayCommand   struct{}
	StopCommand   struct{}
	RewindCommand struct{}
	LoopCommand   struct{}

	TempoCommand struct{ BPM int }
	// NudgeTempoCommand adds Delta to the current tempo.
	NudgeTempoCommand struct{ Delta int }

	AddTrackCommand struct {
		Name     string
		Category voice.Category
		Sound    string
	}
	RemoveTrackCommand struct{ ID string }
	ToggleStepCommand  struct {
		ID   string
		Step int
	}
	ToggleNoteCommand struct {
		ID    string
		Step  int
		Pitch string
	}
	VolumeCommand struct {
		ID     string
		Volume float64
	}
	PanCommand struct {
		ID  string
		Pan float64
	}
	MuteCommand struct {
		ID    string
		Muted bool
	}
	SoloCommand struct {
		ID   string
		Solo bool
	}
	SoundCommand struct {
		ID    string
		Sound string
	}
	EffectCommand struct {
		Kind effects.Kind
		On   bool
	}
	EffectWetCommand struct {
		Kind effects.Kind
		Wet  float32
	}
	EQCommand struct {
		Band int
		Gain float32
	}
)

func (PlayCommand) command()        {}
func (StopCommand) command()        {}
func (RewindCommand) command()      {}
func (LoopCommand) command()        {}
func (TempoCommand) command()       {}
func (NudgeTempoCommand) command()  {}
func (AddTrackCommand) command()    {}
func (RemoveTrackCommand) command() {}
func (ToggleStepCommand) command()  {}
func (ToggleNoteCommand) command()  {}
func (VolumeCommand) command()      {}
func (PanCommand) command()         {}
func (MuteCommand) command()        {}
func (SoloCommand) command()        {}
func (SoundCommand) command()       {}
func (EffectCommand) command()      {}
func (EffectWetCommand) command()   {}
func (EQCommand) command()          {}

// Dispatch applies a command to the engine.
func (e *Engine) Dispatch(cmd Command) error {
	switch c := cmd.(type) {
	case PlayCommand:
		_, err := e.Play()
		return err
	case StopCommand:
		e.Stop()
	case RewindCommand:
		e.Rewind()
	case LoopCommand:
		e.ToggleLoop()
	case TempoCommand:
		e.SetBPM(c.BPM)
	case NudgeTempoCommand:
		e.SetBPM(e.BPM() + c.Delta)
	case AddTrackCommand:
		if c.Category == "" {
			_, err := e.AddDefaultTrack()
			return err
		}
		_, err := e.AddTrack(c.Name, c.Category, c.Sound)
		return err
	case RemoveTrackCommand:
		return e.RemoveTrack(c.ID)
	case ToggleStepCommand:
		_, err := e.ToggleStep(c.ID, c.Step)
		return err
	case ToggleNoteCommand:
		_, err := e.ToggleNote(c.ID, c.Step, c.Pitch)
		return err
	case VolumeCommand:
		_, err := e.SetVolume(c.ID, c.Volume)
		return err
	case PanCommand:
		_, err := e.SetPan(c.ID, c.Pan)
		return err
	case MuteCommand:
		return e.SetMute(c.ID, c.Muted)
	case SoloCommand:
		return e.SetSolo(c.ID, c.Solo)
	case SoundCommand:
		return e.SetSound(c.ID, c.Sound)
	case EffectCommand:
		return e.SetEffect(c.Kind, c.On)
	case EffectWetCommand:
		return e.SetEffectWet(c.Kind, c.Wet)
	case EQCommand:
		return e.SetEQBand(c.Band, c.Gain)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
	return nil
}
