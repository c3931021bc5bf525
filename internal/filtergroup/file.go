package filtergroup

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region file
// File is the on-disk grouped-scenes document.
type File struct {
	Info          scene.Info `json:"info"`
	GroupedScenes *Index     `json:"grouped_scenes"`
}

// WriteFile writes the index with the corpus header it was built from.
func WriteFile(path string, info scene.Info, ix *Index) error {
	data, err := json.Marshal(File{Info: info, GroupedScenes: ix})
	if err != nil {
		return fmt.Errorf("marshal grouped scenes: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write grouped scenes: %w", err)
	}
	return nil
}

// ReadFile loads a grouped-scenes document.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read grouped scenes: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("decode grouped scenes: %w", err)
	}
	if f.GroupedScenes == nil {
		f.GroupedScenes = NewIndex()
	}
	return f, nil
}

// LoadForCorpus reads a grouped-scenes file and checks that it was built
// from a corpus with the same split and version.
func LoadForCorpus(path string, corpus *scene.Corpus) (*Index, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := f.Info.SameSource(corpus.Info); err != nil {
		return nil, fmt.Errorf("grouped scenes %s do not match corpus: %w", path, err)
	}
	return f.GroupedScenes, nil
}

// #endregion file

// #region verify
// Verify re-executes every stored filter program against its scene and
// checks the group invariant: each scene satisfies the options, with exactly
// one selected object for unique groups and more than one for multiple.
func (ix *Index) Verify(corpus *scene.Corpus) error {
	for _, gt := range program.GroupTypes {
		for _, k := range ix.Keys(gt) {
			if err := verifyGroup(ix.Groups(gt)[k], gt, corpus); err != nil {
				return fmt.Errorf("%s group %d: %w", gt, k, err)
			}
		}
	}
	return nil
}

func verifyGroup(g *Group, gt program.GroupType, corpus *scene.Corpus) error {
	if len(g.FilterOptions) == 0 {
		return fmt.Errorf("no filter options")
	}
	if len(g.InputImageFilenames) != g.Len() || len(g.FilterPrograms) != g.Len() {
		return fmt.Errorf("%d filenames, %d indexes, %d programs", len(g.InputImageFilenames), g.Len(), len(g.FilterPrograms))
	}
	want := g.FilterOptions.Key()
	for i, idx := range g.InputImageIndexes {
		s, ok := corpus.Scene(idx)
		if !ok {
			return fmt.Errorf("scene %d not in corpus", idx)
		}
		p, err := program.FromPersisted(g.FilterPrograms[i])
		if err != nil {
			return fmt.Errorf("scene %d: %w", idx, err)
		}
		var opts Options
		for _, n := range p {
			if n.Kind == program.KindFilter {
				opts = append(opts, Option{Type: n.Attr, Value: n.SideInputs[0]})
			}
		}
		if opts.Key() != want {
			return fmt.Errorf("scene %d: program filters %s, options say %s", idx, opts.Key(), want)
		}
		ok, err = selects(g.FilterOptions, s, gt)
		if err != nil {
			return fmt.Errorf("scene %d: %w", idx, err)
		}
		if !ok {
			return fmt.Errorf("scene %d does not satisfy %s as a %s group", idx, want, gt)
		}
	}
	return nil
}

// #endregion verify
