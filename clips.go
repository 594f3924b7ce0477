package stepseq

import (
	"errors"
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/stepseq-go/internal/generation"
	"github.com/cbegin/stepseq-go/internal/pcm"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// GeneratedSound is the preset name given to tracks created from a
// generation result.
const GeneratedSound = "aivocal"

var errNotCompleted = errors.New("generation result is not completed")

// AddClipTrack decodes a WAV clip and appends an audio-clip track that plays
// it. ref is stored in the project as the clip's location. If decoding
// fails no track is created.
func (e *Engine) AddClipTrack(name, sound, ref string, r io.ReadSeeker) (track.Track, error) {
	buf, err := pcm.DecodeWAV(r)
	if err != nil {
		e.report(err)
		return track.Track{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.model.Add(name, voice.AudioClip, sound)
	if err != nil {
		return track.Track{}, invalid(err, "Cannot add clip track")
	}
	if err := e.model.AttachClip(t.ID, ref); err != nil {
		return track.Track{}, invalid(err, "Cannot attach clip")
	}
	t.Clip = ref
	e.clips[t.ID] = buf
	e.newVoiceLocked(t)
	e.rebuildMixLocked()
	e.logger.Info("clip track added", "id", t.ID, "ref", ref, "seconds", buf.Duration().Seconds())
	return t, nil
}

// AttachClipAudio decodes audio for an existing track, typically after a
// project load where only the clip reference survived.
func (e *Engine) AttachClipAudio(id string, r io.ReadSeeker) error {
	buf, err := pcm.DecodeWAV(r)
	if err != nil {
		e.report(err)
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.model.Track(id)
	if !ok || t.IsMaster() {
		return invalid(track.ErrNotFound, "Cannot attach clip")
	}
	e.clips[id] = buf
	if v := e.voices[id]; v != nil {
		v.SetClip(buf)
	}
	return nil
}

// HasClipAudio reports whether decoded audio is attached to a track.
func (e *Engine) HasClipAudio(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clips[id] != nil
}

// AddGeneratedTrack appends a clip track referencing the audio of a
// completed generation. The audio itself is attached separately.
func (e *Engine) AddGeneratedTrack(res generation.Result) (track.Track, error) {
	if res.Status != generation.StatusCompleted || res.AudioURL == "" {
		return track.Track{}, fault.Wrap(errNotCompleted,
			ftag.With(KindInvalidInput),
			fmsg.WithDesc("result status "+string(res.Status), "Generation has not completed."))
	}
	name := res.Title
	if name == "" {
		name = "AI Vocal"
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.model.Add(name, voice.AudioClip, GeneratedSound)
	if err != nil {
		return track.Track{}, invalid(err, "Cannot add generated track")
	}
	if err := e.model.AttachClip(t.ID, res.AudioURL); err != nil {
		return track.Track{}, invalid(err, "Cannot attach clip")
	}
	t.Clip = res.AudioURL
	e.newVoiceLocked(t)
	e.rebuildMixLocked()
	e.notifier.Notify("Generated track added: " + name)
	return t, nil
}
