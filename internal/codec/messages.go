package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/assemble"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/program"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene"
)

// #region types
// ExecuteRequest runs a program on an inline scene or on a corpus scene
// named by image index. Scene wins when both are set.
type ExecuteRequest struct {
	Program    program.Program `json:"program"`
	Scene      *scene.Scene    `json:"scene,omitempty"`
	ImageIndex *int            `json:"image_index,omitempty"`
}

// ExecuteResponse holds the answer in the dataset format.
type ExecuteResponse struct {
	Answer     json.RawMessage `json:"answer"`
	AnswerType string          `json:"answer_type"`
}

// InstantiateRequest grounds one template. MaxTries <= 0 uses the server
// default.
type InstantiateRequest struct {
	Template program.Template `json:"template"`
	Class    string           `json:"class,omitempty"`
	MaxTries int              `json:"max_tries,omitempty"`
}

// InstantiateResponse carries the accepted question, or only the attempt
// count and last rejection when the budget ran out.
type InstantiateResponse struct {
	Accepted bool                       `json:"accepted"`
	Question *assemble.GroundedQuestion `json:"question,omitempty"`
	Attempts int                        `json:"attempts"`
	Reason   string                     `json:"reason,omitempty"`
}

// #endregion types

// #region struct-conversion
// toStruct encodes v through its JSON form into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("encode struct: %w", err)
	}
	return out, nil
}

// fromStruct decodes a protobuf Struct into v through JSON.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// #endregion struct-conversion
