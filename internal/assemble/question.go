// Package assemble turns accepted candidates into dataset questions and
// reads and writes dataset files.
package assemble

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/interpreter"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/orchestrator"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
)

// #region question
// GroundedQuestion is one dataset entry. Answers are parallel to
// ImageIndices.
type GroundedQuestion struct {
	Split            string                  `json:"split"`
	Question         string                  `json:"question"`
	TemplateFilename string                  `json:"template_filename"`
	TemplateIndex    int                     `json:"template_index"`
	QuestionIndex    int                     `json:"question_index"`
	ImageFilenames   []string                `json:"image_filenames"`
	ImageIndices     []int                   `json:"image_indices"`
	Answers          []json.RawMessage       `json:"answers"`
	Program          []program.PersistedNode `json:"program"`
}

// ReturnType classifies the question by its first answer: int, bool,
// string or scene.
func (q GroundedQuestion) ReturnType() string {
	if len(q.Answers) == 0 {
		return "null"
	}
	return interpreter.AnswerType(q.Answers[0])
}

// #endregion question

// #region postprocess
// Postprocess converts the candidates of one template into questions. The
// question index is assigned later by AssignIndexes.
func Postprocess(cands []orchestrator.Candidate, split, templateFilename string, templateIndex int) ([]GroundedQuestion, error) {
	out := make([]GroundedQuestion, 0, len(cands))
	for _, c := range cands {
		answers := make([]json.RawMessage, len(c.Answers))
		for i, a := range c.Answers {
			b, err := json.Marshal(a)
			if err != nil {
				return nil, fmt.Errorf("marshal answer %d of %q: %w", i, c.Text, err)
			}
			answers[i] = b
		}
		out = append(out, GroundedQuestion{
			Split:            split,
			Question:         c.Text,
			TemplateFilename: templateFilename,
			TemplateIndex:    templateIndex,
			ImageFilenames:   c.ImageFilenames,
			ImageIndices:     c.ImageIndices,
			Answers:          answers,
			Program:          c.Program.Persisted(),
		})
	}
	return out, nil
}

// Cap truncates qs to at most n questions.
func Cap(qs []GroundedQuestion, n int) []GroundedQuestion {
	if n >= 0 && len(qs) > n {
		return qs[:n]
	}
	return qs
}

// AssignIndexes numbers the questions of one file 0..n-1 in order.
func AssignIndexes(qs []GroundedQuestion) {
	for i := range qs {
		qs[i].QuestionIndex = i
	}
}

// #endregion postprocess
