package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrProfileNotFound is returned when no profile exists for a device.
var ErrProfileNotFound = errors.New("profile not found")

// Profile is the capture setup applied to a camera when its session opens.
// Zero fields leave the driver's current setting alone.
type Profile struct {
	// Device is the stable device ID (from /dev/v4l/by-id) or a /dev path.
	Device string `toml:"device" json:"device"`

	PixelFormat string           `toml:"pixel_format,omitempty" json:"pixel_format,omitempty" doc:"FOURCC, e.g. YUYV or MJPG"`
	Width       uint32           `toml:"width,omitempty" json:"width,omitempty"`
	Height      uint32           `toml:"height,omitempty" json:"height,omitempty"`
	FPS         uint32           `toml:"fps,omitempty" json:"fps,omitempty"`
	Controls    map[string]int32 `toml:"controls,omitempty" json:"controls,omitempty" doc:"Control name to value, e.g. brightness = 128"`

	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// Profiles is the on-disk layout of profiles.toml.
type Profiles struct {
	Version  int                `toml:"version" json:"version"`
	Profiles map[string]Profile `toml:"profiles" json:"profiles"`
}

// LoadProfiles reads a profiles file. A missing file yields an empty set.
func LoadProfiles(path string) (Profiles, error) {
	p := Profiles{Version: 1, Profiles: make(map[string]Profile)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read profiles: %w", err)
	}

	if err := toml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse profiles: %w", err)
	}
	if p.Profiles == nil {
		p.Profiles = make(map[string]Profile)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	for key, prof := range p.Profiles {
		if prof.Device == "" {
			prof.Device = key
			p.Profiles[key] = prof
		}
	}
	return p, nil
}

// ProfileStore holds camera profiles and persists them to a TOML file.
type ProfileStore struct {
	path string

	mu       sync.RWMutex
	profiles Profiles
}

// NewProfileStore creates a store backed by path ("profiles.toml" if empty).
func NewProfileStore(path string) *ProfileStore {
	if path == "" {
		path = "profiles.toml"
	}
	return &ProfileStore{
		path:     path,
		profiles: Profiles{Version: 1, Profiles: make(map[string]Profile)},
	}
}

// Path returns the backing file.
func (s *ProfileStore) Path() string {
	return s.path
}

// Load reads the backing file, replacing the in-memory set.
func (s *ProfileStore) Load() error {
	p, err := LoadProfiles(s.path)
	if err != nil {
		return err
	}
	s.Replace(p)
	return nil
}

// Replace swaps in a freshly loaded set, as delivered by a Watcher. The
// store keeps its own copy of the map.
func (s *ProfileStore) Replace(p Profiles) {
	p.Profiles = maps.Clone(p.Profiles)
	if p.Profiles == nil {
		p.Profiles = make(map[string]Profile)
	}
	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
}

// Save writes the profiles to the backing file.
func (s *ProfileStore) Save() error {
	s.mu.RLock()
	data, err := toml.Marshal(s.profiles)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write then rename so watchers never load a half-written file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Get returns the profile for a device.
func (s *ProfileStore) Get(device string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles.Profiles[device]
	return p, ok
}

// Set stores a profile, stamping UpdatedAt.
func (s *ProfileStore) Set(p Profile) error {
	if p.Device == "" {
		return errors.New("profile device cannot be empty")
	}
	p.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.profiles.Profiles[p.Device] = p
	s.mu.Unlock()
	return nil
}

// Remove deletes the profile for a device.
func (s *ProfileStore) Remove(device string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles.Profiles[device]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, device)
	}
	delete(s.profiles.Profiles, device)
	return nil
}

// All returns every profile sorted by device.
func (s *ProfileStore) All() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles.Profiles))
	for _, p := range s.profiles.Profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}
