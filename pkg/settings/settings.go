// Package settings holds the user-adjustable generation options and the
// process-wide store they live in.
package settings

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = "gemini-3-pro-image-preview"

// Resolution is the image size tier requested from the model.
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// Resolutions lists every accepted tier in display order.
var Resolutions = []Resolution{Resolution1K, Resolution2K, Resolution4K}

// Valid reports whether r is a known tier.
func (r Resolution) Valid() bool {
	switch r {
	case Resolution1K, Resolution2K, Resolution4K:
		return true
	}
	return false
}

// AspectRatio is the requested image aspect ratio. AspectAuto omits the
// directive from the request entirely.
type AspectRatio string

const (
	AspectAuto AspectRatio = "Auto"
	Aspect1x1  AspectRatio = "1:1"
	Aspect3x4  AspectRatio = "3:4"
	Aspect4x3  AspectRatio = "4:3"
	Aspect9x16 AspectRatio = "9:16"
	Aspect16x9 AspectRatio = "16:9"
)

// AspectRatios lists every accepted ratio in display order.
var AspectRatios = []AspectRatio{AspectAuto, Aspect1x1, Aspect3x4, Aspect4x3, Aspect9x16, Aspect16x9}

// Valid reports whether a is a known ratio.
func (a AspectRatio) Valid() bool {
	switch a {
	case AspectAuto, Aspect1x1, Aspect3x4, Aspect4x3, Aspect9x16, Aspect16x9:
		return true
	}
	return false
}

// Settings are the generation options read on every send.
type Settings struct {
	Resolution   Resolution  `yaml:"resolution" json:"resolution"`
	AspectRatio  AspectRatio `yaml:"aspect_ratio" json:"aspectRatio"`
	Grounding    bool        `yaml:"grounding" json:"grounding"`
	ShowThoughts bool        `yaml:"show_thoughts" json:"showThoughts"`
	Streaming    bool        `yaml:"streaming" json:"streaming"`
	Endpoint     string      `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Model        string      `yaml:"model,omitempty" json:"model,omitempty"`
}

// Default returns the settings a fresh session starts with.
func Default() Settings {
	return Settings{
		Resolution:   Resolution1K,
		AspectRatio:  Aspect1x1,
		ShowThoughts: true,
		Streaming:    true,
		Model:        DefaultModel,
	}
}

// ModelName returns the configured model or DefaultModel.
func (s Settings) ModelName() string {
	if s.Model == "" {
		return DefaultModel
	}
	return s.Model
}

// Validate checks that every enumerated option holds a known value. Empty
// values are accepted and mean "use the default".
func (s Settings) Validate() error {
	if s.Resolution != "" && !s.Resolution.Valid() {
		return fmt.Errorf("settings: unknown resolution %q", s.Resolution)
	}
	if s.AspectRatio != "" && !s.AspectRatio.Valid() {
		return fmt.Errorf("settings: unknown aspect ratio %q", s.AspectRatio)
	}
	if s.Endpoint != "" {
		u, err := url.Parse(s.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("settings: invalid endpoint %q", s.Endpoint)
		}
	}
	return nil
}

// Normalize fills empty enumerated options with their defaults.
func (s Settings) Normalize() Settings {
	d := Default()
	if s.Resolution == "" {
		s.Resolution = d.Resolution
	}
	if s.AspectRatio == "" {
		s.AspectRatio = d.AspectRatio
	}
	return s
}

// FromQuery applies recognized URL query parameters to s and returns the
// result together with the "apikey" parameter, if present. Unrecognized or
// malformed values are ignored.
func FromQuery(s Settings, q url.Values) (Settings, string) {
	if v := q.Get("endpoint"); v != "" {
		s.Endpoint = v
	}
	if v := q.Get("model"); v != "" {
		s.Model = v
	}
	if v := Resolution(q.Get("resolution")); v.Valid() {
		s.Resolution = v
	}
	if v := AspectRatio(q.Get("aspect")); v.Valid() {
		s.AspectRatio = v
	}
	applyBool(q, "grounding", &s.Grounding)
	applyBool(q, "thoughts", &s.ShowThoughts)
	applyBool(q, "stream", &s.Streaming)

	return s, q.Get("apikey")
}

func applyBool(q url.Values, key string, dst *bool) {
	if !q.Has(key) {
		return
	}
	if b, err := strconv.ParseBool(q.Get(key)); err == nil {
		*dst = b
	}
}

// Store is the process-wide settings container. It is safe for concurrent
// use. The zero value holds zero Settings; use NewStore for defaults.
type Store struct {
	mu       sync.RWMutex
	current  Settings
	onChange []func(Settings)
}

// NewStore creates a Store holding s.
func NewStore(s Settings) *Store {
	return &Store{current: s}
}

// Get returns the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return st.current
}

// Set replaces the current settings after validating them.
func (st *Store) Set(s Settings) error {
	return st.Update(func(cur *Settings) { *cur = s })
}

// Update applies fn to a copy of the current settings and commits the result
// if it validates. Change hooks run after the lock is released.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	next := st.current
	fn(&next)
	if err := next.Validate(); err != nil {
		st.mu.Unlock()
		return err
	}
	st.current = next
	hooks := make([]func(Settings), len(st.onChange))
	copy(hooks, st.onChange)
	st.mu.Unlock()

	for _, h := range hooks {
		h(next)
	}
	return nil
}

// OnChange registers fn to be called with the new settings after every
// successful update.
func (st *Store) OnChange(fn func(Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.onChange = append(st.onChange, fn)
}
