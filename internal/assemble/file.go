package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// Dataset split names.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

var splits = []string{SplitTrain, SplitVal, SplitTest}

// #region file
// QuestionFile is the on-disk dataset file.
type QuestionFile struct {
	Info      scene.Info         `json:"info"`
	Questions []GroundedQuestion `json:"questions"`
}

// CleanClass strips the split-specific suffix from a template class, so
// "2_remove_val" and "2_remove_train" share the class "2_remove".
func CleanClass(class string) string {
	class, _, _ = strings.Cut(class, "_val")
	class, _, _ = strings.Cut(class, "_train")
	return class
}

// OutputFilename is {prefix}_{split}_{class}.json with the class cleaned.
func OutputFilename(prefix, split, class string) string {
	return fmt.Sprintf("%s_%s_%s.json", prefix, split, CleanClass(class))
}

// ParseQuestionFilename splits {prefix}_{split}_{class}.json. The prefix
// has no underscores; the class may.
func ParseQuestionFilename(name string) (prefix, split, class string, err error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".json") {
		return "", "", "", fmt.Errorf("question file %q: not a .json file", base)
	}
	parts := strings.SplitN(strings.TrimSuffix(base, ".json"), "_", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("question file %q: want {prefix}_{split}_{class}.json", base)
	}
	if !slices.Contains(splits, parts[1]) {
		return "", "", "", fmt.Errorf("question file %q: unknown split %q", base, parts[1])
	}
	return parts[0], parts[1], parts[2], nil
}

// WriteQuestionFile writes {info, questions} to path.
func WriteQuestionFile(path string, info scene.Info, qs []GroundedQuestion) error {
	if qs == nil {
		qs = []GroundedQuestion{}
	}
	data, err := json.Marshal(QuestionFile{Info: info, Questions: qs})
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write questions: %w", err)
	}
	return nil
}

// LoadQuestionFile reads a dataset file.
func LoadQuestionFile(path string) (QuestionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QuestionFile{}, fmt.Errorf("read questions: %w", err)
	}
	var qf QuestionFile
	if err := json.Unmarshal(data, &qf); err != nil {
		return QuestionFile{}, fmt.Errorf("decode questions %s: %w", path, err)
	}
	return qf, nil
}

// #endregion file

// #region held-out
// HeldOutTexts returns the texts generation must avoid for split. For val
// these are the questions of the train file of the same class in dir; a
// missing train file is an error. Other splits hold nothing out.
func HeldOutTexts(dir, prefix, split, class string) (map[string]bool, error) {
	held := make(map[string]bool)
	if split != SplitVal {
		return held, nil
	}
	path := filepath.Join(dir, OutputFilename(prefix, SplitTrain, class))
	qf, err := LoadQuestionFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("held-out questions for %s: train file %s is missing: %w", class, path, err)
		}
		return nil, err
	}
	for _, q := range qf.Questions {
		held[q.Question] = true
	}
	return held, nil
}

// #endregion held-out
