package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedQuestion marks a question that violates its shape
// invariants (e.g. a CQ with a missing part). It is detected at
// render/grade time and recoverable per question.
var ErrMalformedQuestion = errors.New("malformed question")

// PartAnswer is the learner's answer to one CQ part. Text and Image
// may each be empty; both empty means the part is unanswered. Image,
// when present, is a data-URI with an inline handwritten photo.
type PartAnswer struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Empty reports whether the part carries no answer at all.
func (p PartAnswer) Empty() bool {
	return p.Text == "" && p.Image == ""
}

// MCQAnswer is the chosen option of an MCQ.
type MCQAnswer struct {
	OptionID string `json:"optionId" validate:"required"`
}

// CQAnswer maps CQ part keys to the learner's per-part answers.
type CQAnswer struct {
	Parts map[PartKey]PartAnswer `json:"parts"`
}

// Part returns the answer for a part key, zero-valued when absent.
func (a CQAnswer) Part(k PartKey) PartAnswer {
	return a.Parts[k]
}

// Answer is a tagged union over the two answer shapes. Exactly one of
// the two pointers is set.
type Answer struct {
	MCQ *MCQAnswer
	CQ  *CQAnswer
}

// Kind returns the variant tag of the answer.
func (a Answer) Kind() QuestionKind {
	if a.MCQ != nil {
		return KindMCQ
	}
	return KindCQ
}

// MarshalJSON encodes the answer with a "type" discriminator.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.MCQ != nil:
		type alias MCQAnswer
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			*alias
		}{KindMCQ, (*alias)(a.MCQ)})
	case a.CQ != nil:
		type alias CQAnswer
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			*alias
		}{KindCQ, (*alias)(a.CQ)})
	default:
		return nil, errors.New("marshal empty answer union")
	}
}

// UnmarshalJSON decodes an answer based on its "type" discriminator.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var env questionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case KindMCQ:
		var m MCQAnswer
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*a = Answer{MCQ: &m}
	case KindCQ:
		var c CQAnswer
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*a = Answer{CQ: &c}
	default:
		return fmt.Errorf("unknown answer type %q", env.Type)
	}
	return nil
}

// DecodeDataURI splits a data-URI into its media type and base64
// payload. Used when packaging handwritten CQ answers for grading.
func DecodeDataURI(uri string) (mediaType, base64Data string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("data URI missing payload")
	}
	mediaType = strings.TrimSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return mediaType, payload, nil
}
