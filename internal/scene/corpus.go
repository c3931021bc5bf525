package scene

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// #region info
// Info is the free-form header of scene, grouped-scene and question files.
type Info map[string]json.RawMessage

// Get returns a header field rendered as a string. Non-string JSON values are
// returned in their literal form so numeric versions compare predictably.
func (i Info) Get(key string) string {
	v, ok := i[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// Set stores a string header field.
func (i Info) Set(key, value string) {
	b, _ := json.Marshal(value)
	i[key] = b
}

// Clone copies the header.
func (i Info) Clone() Info {
	out := make(Info, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

// SameSource reports whether two headers describe the same split and version.
func (i Info) SameSource(other Info) error {
	if i.Get("split") != other.Get("split") {
		return fmt.Errorf("split mismatch: %q vs %q", i.Get("split"), other.Get("split"))
	}
	if i.Get("version") != other.Get("version") {
		return fmt.Errorf("version mismatch: %q vs %q", i.Get("version"), other.Get("version"))
	}
	return nil
}

// #endregion info

// #region corpus
// Corpus is a read-only collection of scenes addressed by image index.
type Corpus struct {
	Info   Info
	Scenes []Scene

	byIndex map[int]int
}

type corpusFile struct {
	Info   Info    `json:"info"`
	Scenes []Scene `json:"scenes"`
}

// NewCorpus indexes scenes by image index, falling back to the filename
// suffix and then to list position when a scene carries no index.
func NewCorpus(info Info, scenes []Scene) (*Corpus, error) {
	if info == nil {
		info = Info{}
	}
	c := &Corpus{Info: info, Scenes: scenes, byIndex: make(map[int]int, len(scenes))}
	for i := range c.Scenes {
		s := &c.Scenes[i]
		if !s.hasIndex {
			if idx, err := IndexFromFilename(s.ImageFilename); err == nil && s.ImageFilename != "" {
				s.ImageIndex = idx
			} else {
				s.ImageIndex = i
			}
			s.hasIndex = true
		}
		if prev, dup := c.byIndex[s.ImageIndex]; dup {
			return nil, fmt.Errorf("duplicate image index %d (scenes %d and %d)", s.ImageIndex, prev, i)
		}
		c.byIndex[s.ImageIndex] = i
	}
	return c, nil
}

// ReadCorpus decodes a {info, scenes} document.
func ReadCorpus(r io.Reader) (*Corpus, error) {
	var f corpusFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	return NewCorpus(f.Info, f.Scenes)
}

// LoadCorpus reads a scene file from disk.
func LoadCorpus(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenes: %w", err)
	}
	defer f.Close()
	return ReadCorpus(f)
}

// Scene returns the scene with the given image index.
func (c *Corpus) Scene(index int) (Scene, bool) {
	i, ok := c.byIndex[index]
	if !ok {
		return Scene{}, false
	}
	return c.Scenes[i], true
}

// Len returns the number of scenes.
func (c *Corpus) Len() int {
	return len(c.Scenes)
}

// #endregion corpus
