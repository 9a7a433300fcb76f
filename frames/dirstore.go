package frames

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry describes one identifier in a manifest. File is a still image or
// an animated GIF; Frames lists still images played in order, each for
// Delay (100ms when unset).
type Entry struct {
	File   string        `yaml:"file,omitempty"`
	Frames []string      `yaml:"frames,omitempty"`
	Delay  time.Duration `yaml:"delay,omitempty"`
}

// Manifest maps identifiers to image files relative to its directory.
type Manifest struct {
	Sequences map[string]Entry `yaml:"sequences"`
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	for id, e := range m.Sequences {
		if e.File == "" && len(e.Frames) == 0 {
			return Manifest{}, fmt.Errorf("manifest entry %q: needs file or frames", id)
		}
		if e.File != "" && len(e.Frames) > 0 {
			return Manifest{}, fmt.Errorf("manifest entry %q: file and frames are exclusive", id)
		}
	}
	return m, nil
}

// DirStore loads sequences from image files named by a manifest. Decoded
// frames are cached; a failed decode is retried on the next Resolve.
type DirStore struct {
	dir      string
	manifest Manifest
	size     image.Point

	mu    sync.Mutex
	cache map[string]*Sequence
}

// NewDirStore returns a store reading files below dir, fitting every
// frame to size.
func NewDirStore(dir string, m Manifest, size image.Point) *DirStore {
	return &DirStore{
		dir:      dir,
		manifest: m,
		size:     size,
		cache:    make(map[string]*Sequence),
	}
}

// OpenManifest reads a manifest file and returns a store rooted at the
// manifest's directory.
func OpenManifest(path string, size image.Point) (*DirStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	return NewDirStore(filepath.Dir(path), m, size), nil
}

func (s *DirStore) Resolve(id string) (*Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.cache[id]; ok {
		return seq.Clone(), nil
	}

	entry, ok := s.manifest.Sequences[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown identifier %q", ErrUnavailable, id)
	}

	seq, err := s.load(id, entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.cache[id] = seq
	return seq.Clone(), nil
}

func (s *DirStore) load(id string, e Entry) (*Sequence, error) {
	if e.File != "" {
		if strings.EqualFold(filepath.Ext(e.File), ".gif") {
			f, err := os.Open(s.path(e.File))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			defer f.Close()
			return DecodeGIF(id, f, s.size)
		}
		img, err := s.decode(e.File)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		return Still(id, Fit(img, s.size)), nil
	}

	delay := e.Delay
	if delay <= 0 {
		delay = minFrameDelay
	}
	frames := make([]Frame, 0, len(e.Frames))
	for _, name := range e.Frames {
		img, err := s.decode(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		frames = append(frames, Frame{Image: Fit(img, s.size), Delay: delay})
	}
	return Animated(id, frames)
}

func (s *DirStore) decode(name string) (image.Image, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

func (s *DirStore) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}
