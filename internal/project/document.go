package project

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// KindPersistence tags load and save failures.
const KindPersistence ftag.Kind = "persistence"

// Document is the on-disk project format.
type Document struct {
	Name   string     `json:"name,omitempty" yaml:"name,omitempty"`
	BPM    int        `json:"bpm" yaml:"bpm"`
	Tracks []TrackDoc `json:"tracks" yaml:"tracks"`
}

type TrackDoc struct {
	ID       string              `json:"id" yaml:"id"`
	Name     string              `json:"name" yaml:"name"`
	Category string              `json:"category,omitempty" yaml:"category,omitempty"`
	Type     string              `json:"type,omitempty" yaml:"type,omitempty"`
	Sound    string              `json:"sound" yaml:"sound"`
	Volume   *float64            `json:"volume" yaml:"volume"`
	Pan      float64             `json:"pan" yaml:"pan"`
	Muted    bool                `json:"muted" yaml:"muted"`
	Solo     bool                `json:"solo" yaml:"solo"`
	Steps    []bool              `json:"steps" yaml:"steps"`
	Notes    map[string][]string `json:"notes" yaml:"notes"`
	Clip     string              `json:"clip,omitempty" yaml:"clip,omitempty"`
}

// legacyTypes maps the older single "type" field onto categories.
var legacyTypes = map[string]voice.Category{
	"drum":   voice.Percussion,
	"synth":  voice.Melodic,
	"bass":   voice.Melodic,
	"keys":   voice.Melodic,
	"fx":     voice.Effect,
	"vocal":  voice.AudioClip,
	"master": voice.Master,
}

// Serialize converts a track snapshot into a document.
func Serialize(name string, tracks []track.Track, bpm int) Document {
	doc := Document{Name: name, BPM: bpm, Tracks: make([]TrackDoc, 0, len(tracks))}
	for _, t := range tracks {
		vol := t.Volume
		td := TrackDoc{
			ID:       t.ID,
			Name:     t.Name,
			Category: string(t.Category),
			Sound:    t.Sound,
			Volume:   &vol,
			Pan:      t.Pan,
			Muted:    t.Muted,
			Solo:     t.Solo,
			Steps:    append([]bool(nil), t.Steps...),
			Notes:    make(map[string][]string, len(t.Notes)),
			Clip:     t.Clip,
		}
		for beat, pitches := range t.Notes {
			td.Notes[strconv.Itoa(beat)] = append([]string(nil), pitches...)
		}
		doc.Tracks = append(doc.Tracks, td)
	}
	return doc
}

// Deserialize converts a document into tracks for a grid, filling defaults
// for anything missing. The track list still needs Model.Replace to enforce
// the master and id invariants.
func Deserialize(doc Document, grid int) ([]track.Track, int, error) {
	if grid <= 0 {
		return nil, 0, fault.New("grid must be positive", ftag.With(KindPersistence))
	}
	bpm := doc.BPM
	if bpm == 0 {
		bpm = transport.DefaultBPM
	}
	bpm = transport.ClampBPM(bpm)
	tracks := make([]track.Track, 0, len(doc.Tracks))
	for _, td := range doc.Tracks {
		t := track.Track{
			ID:       td.ID,
			Name:     td.Name,
			Category: category(td),
			Sound:    td.Sound,
			Volume:   track.DefaultVolume,
			Pan:      td.Pan,
			Muted:    td.Muted,
			Solo:     td.Solo,
			Steps:    make([]bool, grid),
			Notes:    map[int][]string{},
			Clip:     td.Clip,
		}
		if td.Volume != nil {
			t.Volume = *td.Volume
		}
		if t.Sound == "" {
			t.Sound = voice.DefaultSound(t.Category)
		}
		copy(t.Steps, td.Steps)
		for key, pitches := range td.Notes {
			beat, err := strconv.Atoi(strings.TrimSpace(key))
			if err != nil || beat < 0 || beat >= grid || len(pitches) == 0 {
				continue
			}
			t.Notes[beat] = append([]string(nil), pitches...)
		}
		tracks = append(tracks, t)
	}
	return tracks, bpm, nil
}

func category(td TrackDoc) voice.Category {
	if c, err := voice.ParseCategory(td.Category); err == nil {
		return c
	}
	if c, ok := legacyTypes[strings.ToLower(strings.TrimSpace(td.Type))]; ok {
		return c
	}
	if td.ID == track.MasterID {
		return voice.Master
	}
	return voice.Melodic
}

// Marshal writes the document as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(KindPersistence), fmsg.WithDesc("marshal project", "Could not save project."))
	}
	return b, nil
}

func MarshalYAML(doc Document) ([]byte, error) {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(KindPersistence), fmsg.WithDesc("marshal project", "Could not save project."))
	}
	return b, nil
}

// Unmarshal reads a JSON document, falling back to YAML.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return doc, fault.New("empty project", ftag.With(KindPersistence),
			fmsg.WithDesc("empty project", "Project file is empty."))
	}
	jsonErr := json.Unmarshal(data, &doc)
	if jsonErr == nil {
		return doc, nil
	}
	doc = Document{}
	if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
		return Document{}, fault.Wrap(jsonErr, ftag.With(KindPersistence),
			fmsg.WithDesc("parse project", "Could not read project file."))
	}
	return doc, nil
}
