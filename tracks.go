package stepseq

import (
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// Tracks returns a snapshot of every track, master first.
func (e *Engine) Tracks() []track.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Tracks()
}

func (e *Engine) Track(id string) (track.Track, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Track(id)
}

// AddTrack appends a track and builds its voice.
func (e *Engine) AddTrack(name string, c voice.Category, sound string) (track.Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.model.Add(name, c, sound)
	if err != nil {
		return track.Track{}, invalid(err, "Cannot add track")
	}
	e.newVoiceLocked(t)
	e.rebuildMixLocked()
	e.logger.Debug("track added", "id", t.ID, "category", string(t.Category), "sound", t.Sound)
	return t, nil
}

// AddDefaultTrack appends a melodic synth track with a generated name.
func (e *Engine) AddDefaultTrack() (track.Track, error) {
	return e.AddTrack("", voice.Melodic, voice.DefaultSound(voice.Melodic))
}

// RemoveTrack deletes a track and releases its voice.
func (e *Engine) RemoveTrack(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.model.Remove(id); err != nil {
		return invalid(err, "Cannot remove track")
	}
	if v := e.voices[id]; v != nil {
		v.Close()
		delete(e.voices, id)
	}
	delete(e.clips, id)
	e.rebuildMixLocked()
	return nil
}

// ToggleStep flips a step. Turning a step on previews the track's sound
// once the engine is ready.
func (e *Engine) ToggleStep(id string, step int) (bool, error) {
	e.mu.Lock()
	on, err := e.model.ToggleStep(id, step)
	v := e.voices[id]
	e.mu.Unlock()
	if err != nil {
		return false, invalid(err, "Cannot toggle step")
	}
	if on {
		e.preview(v, "")
	}
	return on, nil
}

// ToggleNote adds or removes a pitch at a step. Adding a note previews it.
func (e *Engine) ToggleNote(id string, step int, pitch string) (bool, error) {
	e.mu.Lock()
	on, err := e.model.ToggleNote(id, step, pitch)
	v := e.voices[id]
	e.mu.Unlock()
	if err != nil {
		return false, invalid(err, "Cannot toggle note")
	}
	if on {
		e.preview(v, pitch)
	}
	return on, nil
}

// Preview plays a track's sound immediately.
func (e *Engine) Preview(id, pitch string) error {
	if !e.Ready() {
		return ErrNotReady
	}
	e.mu.Lock()
	v := e.voices[id]
	e.mu.Unlock()
	if v == nil {
		return invalid(track.ErrNotFound, "Nothing to preview")
	}
	e.preview(v, pitch)
	return nil
}

func (e *Engine) preview(v *voice.Voice, pitch string) {
	if v == nil || !e.Ready() {
		return
	}
	if pitch == "" {
		pitch = voice.ReferencePitch
	}
	v.Trigger(pitch, voice.ParseDuration(e.cfg.noteLength, int(e.bpm.Load())))
}

// SetVolume sets a track's volume, clamped to [0,1]. On the master track it
// sets the output gain.
func (e *Engine) SetVolume(id string, v float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	got, err := e.model.SetVolume(id, v)
	if err != nil {
		return 0, invalid(err, "Cannot set volume")
	}
	e.syncGainsLocked()
	return got, nil
}

// SetPan sets a track's pan, clamped to [-1,1].
func (e *Engine) SetPan(id string, p float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	got, err := e.model.SetPan(id, p)
	if err != nil {
		return 0, invalid(err, "Cannot set pan")
	}
	e.syncGainsLocked()
	return got, nil
}

func (e *Engine) SetMute(id string, muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.model.SetMute(id, muted); err != nil {
		return invalid(err, "Cannot mute track")
	}
	e.syncGainsLocked()
	return nil
}

// SetSolo marks a track soloed. While any track is soloed only soloed
// tracks play.
func (e *Engine) SetSolo(id string, solo bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.model.SetSolo(id, solo); err != nil {
		return invalid(err, "Cannot solo track")
	}
	e.syncGainsLocked()
	return nil
}

// SetSound swaps the preset of a track, rebuilding its voice, and previews
// the new sound.
func (e *Engine) SetSound(id, sound string) error {
	e.mu.Lock()
	if err := e.model.SetSound(id, sound); err != nil {
		e.mu.Unlock()
		return invalid(err, "Cannot change sound")
	}
	t, _ := e.model.Track(id)
	e.newVoiceLocked(t)
	e.rebuildMixLocked()
	v := e.voices[id]
	e.mu.Unlock()
	e.preview(v, "")
	return nil
}

func (e *Engine) Rename(id, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.model.Rename(id, name); err != nil {
		return invalid(err, "Cannot rename track")
	}
	return nil
}

// syncGainsLocked pushes volume, pan and audibility to every live voice.
// Tracks silenced by mute or by another track's solo get zero gain at once,
// so ringing notes stop too.
func (e *Engine) syncGainsLocked() {
	e.updateMasterLocked()
	tracks := e.model.Tracks()
	audible := make(map[string]bool, len(tracks))
	for _, t := range track.Audible(tracks) {
		audible[t.ID] = true
	}
	for _, t := range tracks {
		if v := e.voices[t.ID]; v != nil {
			v.SetGain(t.Volume, t.Pan, !audible[t.ID])
		}
	}
}
