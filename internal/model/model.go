package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Language is a supported content language.
type Language string

const (
	LangBengali Language = "bn"
	LangEnglish Language = "en"
)

// Valid reports whether the language is one we can generate and grade in.
func (l Language) Valid() bool {
	return l == LangBengali || l == LangEnglish
}

// Subject is an SSC exam subject. Values are the canonical NCTB
// subject names, which double as display labels.
type Subject string

const (
	SubjectPhysics    Subject = "পদার্থবিজ্ঞান"
	SubjectChemistry  Subject = "রসায়ন"
	SubjectBiology    Subject = "জীববিজ্ঞান"
	SubjectHigherMath Subject = "উচ্চতর গণিত"
	SubjectHistory    Subject = "ইতিহাস ও বিশ্বসভ্যতা"
	SubjectGeography  Subject = "ভূগোল ও পরিবেশ"
	SubjectCivics     Subject = "পৌরনীতি ও নাগরিকতা"
	SubjectMath       Subject = "সাধারণ গণিত"
	SubjectScience    Subject = "সাধারণ বিজ্ঞান"
	SubjectICT        Subject = "তথ্য ও যোগাযোগ প্রযুক্তি"
	SubjectBGS        Subject = "বাংলাদেশ ও বিশ্বপরিচয়"
	SubjectEnglish1st Subject = "English 1st Paper"
	SubjectEnglish2nd Subject = "English 2nd Paper"
	SubjectBangla1st  Subject = "বাংলা ১ম পত্র"
	SubjectBangla2nd  Subject = "বাংলা ২য় পত্র"
)

// Track is a student's study track (bibhag).
type Track string

const (
	TrackScience    Track = "বিজ্ঞান"
	TrackHumanities Track = "মানবিক"
	TrackCommerce   Track = "ব্যবসায় শিক্ষা"
)

// Mode is the exam session mode.
type Mode string

const (
	ModePractice Mode = "Practice"
	ModeExam     Mode = "Exam"
	ModeBoard    Mode = "BOARD"
)

// Difficulty tags an MCQ question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// QuestionKind discriminates the question union.
type QuestionKind string

const (
	KindMCQ QuestionKind = "MCQ"
	KindCQ  QuestionKind = "CQ"
)

// PartKey identifies one of the four parts of a creative question.
type PartKey string

const (
	PartA PartKey = "a"
	PartB PartKey = "b"
	PartC PartKey = "c"
	PartD PartKey = "d"
)

// PartKeys lists the CQ part keys in grading order.
var PartKeys = []PartKey{PartA, PartB, PartC, PartD}

// MCQOption is one answer choice of an MCQ.
type MCQOption struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// MCQQuestion is a multiple-choice question with a single correct option.
type MCQQuestion struct {
	ID              string      `json:"id" validate:"required"`
	Chapter         string      `json:"chapter"`
	Question        string      `json:"question" validate:"required"`
	Options         []MCQOption `json:"options" validate:"min=2,dive"`
	CorrectOptionID string      `json:"correctOptionId" validate:"required"`
	Explanation     string      `json:"explanation"`
	Difficulty      Difficulty  `json:"difficulty"`
}

// CorrectOption returns the option matching CorrectOptionID, or nil.
func (q *MCQQuestion) CorrectOption() *MCQOption {
	for i := range q.Options {
		if q.Options[i].ID == q.CorrectOptionID {
			return &q.Options[i]
		}
	}
	return nil
}

// Validate checks the MCQ invariants: unique option ids and a correct
// option that actually exists.
func (q *MCQQuestion) Validate() error {
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate option id %q in question %s", ErrMalformedQuestion, o.ID, q.ID)
		}
		seen[o.ID] = true
	}
	if !seen[q.CorrectOptionID] {
		return fmt.Errorf("%w: correctOptionId %q not among options of question %s", ErrMalformedQuestion, q.CorrectOptionID, q.ID)
	}
	return nil
}

// CQPart is one graded sub-question of a creative question.
type CQPart struct {
	Question string  `json:"question" validate:"required"`
	Marks    float64 `json:"marks" validate:"gt=0"`
	Label    string  `json:"label"`
}

// CQQuestion is a creative question: a stem with exactly four graded
// parts keyed a-d.
type CQQuestion struct {
	ID      string             `json:"id" validate:"required"`
	Chapter string             `json:"chapter"`
	Stem    string             `json:"stem" validate:"required"`
	Parts   map[PartKey]CQPart `json:"parts" validate:"required"`
}

// Validate checks that all four parts are present with positive marks.
// A CQ failing this is unusable for rendering and grading.
func (q *CQQuestion) Validate() error {
	for _, k := range PartKeys {
		p, ok := q.Parts[k]
		if !ok {
			return fmt.Errorf("%w: question %s missing part %q", ErrMalformedQuestion, q.ID, k)
		}
		if p.Marks <= 0 {
			return fmt.Errorf("%w: question %s part %q has non-positive marks", ErrMalformedQuestion, q.ID, k)
		}
	}
	return nil
}

// MaxMarks returns the total marks across the four parts.
func (q *CQQuestion) MaxMarks() float64 {
	var total float64
	for _, p := range q.Parts {
		total += p.Marks
	}
	return total
}

// Question is a tagged union over MCQ and CQ variants. Exactly one of
// the two pointers is set.
type Question struct {
	MCQ *MCQQuestion
	CQ  *CQQuestion
}

// Kind returns the variant tag.
func (q Question) Kind() QuestionKind {
	if q.MCQ != nil {
		return KindMCQ
	}
	return KindCQ
}

// ID returns the question identifier regardless of variant.
func (q Question) ID() string {
	if q.MCQ != nil {
		return q.MCQ.ID
	}
	if q.CQ != nil {
		return q.CQ.ID
	}
	return ""
}

// Chapter returns the chapter label regardless of variant.
func (q Question) Chapter() string {
	if q.MCQ != nil {
		return q.MCQ.Chapter
	}
	if q.CQ != nil {
		return q.CQ.Chapter
	}
	return ""
}

// Validate delegates to the variant's validation.
func (q Question) Validate() error {
	switch {
	case q.MCQ != nil:
		return q.MCQ.Validate()
	case q.CQ != nil:
		return q.CQ.Validate()
	default:
		return fmt.Errorf("%w: empty question union", ErrMalformedQuestion)
	}
}

type questionEnvelope struct {
	Type QuestionKind `json:"type"`
}

// MarshalJSON encodes the question with a "type" discriminator.
func (q Question) MarshalJSON() ([]byte, error) {
	switch {
	case q.MCQ != nil:
		type alias MCQQuestion
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			*alias
		}{KindMCQ, (*alias)(q.MCQ)})
	case q.CQ != nil:
		type alias CQQuestion
		return json.Marshal(struct {
			Type QuestionKind `json:"type"`
			*alias
		}{KindCQ, (*alias)(q.CQ)})
	default:
		return nil, errors.New("marshal empty question union")
	}
}

// UnmarshalJSON decodes a question based on its "type" discriminator.
func (q *Question) UnmarshalJSON(data []byte) error {
	var env questionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	switch env.Type {
	case KindMCQ:
		var mcq MCQQuestion
		if err := json.Unmarshal(data, &mcq); err != nil {
			return err
		}
		*q = Question{MCQ: &mcq}
	case KindCQ:
		var cq CQQuestion
		if err := json.Unmarshal(data, &cq); err != nil {
			return err
		}
		*q = Question{CQ: &cq}
	default:
		return fmt.Errorf("unknown question type %q", env.Type)
	}
	return nil
}

// SessionState is a stage of the exam session lifecycle.
type SessionState string

const (
	StateConfiguring SessionState = "configuring"
	StateActive      SessionState = "active"
	StateFinalizing  SessionState = "finalizing"
	StateCompleted   SessionState = "completed"
)

// ExamSession is one exam attempt. The question sequence is fixed at
// creation and never mutated afterwards.
type ExamSession struct {
	ID              string       `json:"id"`
	Subject         Subject      `json:"subject"`
	Mode            Mode         `json:"mode"`
	StartTime       time.Time    `json:"startTime"`
	Questions       []Question   `json:"questions"`
	DurationMinutes int          `json:"durationMinutes"`
	IsCompleted     bool         `json:"isCompleted"`
	Language        Language     `json:"language"`
	State           SessionState `json:"state"`
}

// GradeStatus classifies a grading result.
type GradeStatus string

const (
	StatusCorrect   GradeStatus = "Correct"
	StatusPartial   GradeStatus = "Partial"
	StatusIncorrect GradeStatus = "Incorrect"
)

// GradingResult is the graded outcome for one MCQ or one CQ part.
type GradingResult struct {
	QuestionID    string      `json:"questionId" validate:"required"`
	ObtainedMarks float64     `json:"obtainedMarks" validate:"gte=0"`
	MaxMarks      float64     `json:"maxMarks" validate:"gt=0"`
	Feedback      string      `json:"feedback" validate:"required"`
	Status        GradeStatus `json:"status" validate:"required,oneof=Correct Partial Incorrect"`
}

// SessionHistory is the immutable record of a completed session.
type SessionHistory struct {
	SessionID       string    `json:"sessionId"`
	Subject         Subject   `json:"subject"`
	Timestamp       time.Time `json:"timestamp"`
	Score           float64   `json:"score"`
	TotalMarks      float64   `json:"totalMarks"`
	Accuracy        int       `json:"accuracy"`
	DurationMinutes int       `json:"durationMinutes"`
	Mode            Mode      `json:"mode"`
}

// UserGoals are the student's self-set targets.
type UserGoals struct {
	TopicsMastered int `json:"topicsMastered" validate:"gte=0"`
	StudyHours     int `json:"studyHours" validate:"gte=0"`
	TargetAccuracy int `json:"targetAccuracy" validate:"gte=0,lte=100"`
}

// UserProfile is the student's mutable configuration.
type UserProfile struct {
	Name  string    `json:"name"`
	Age   string    `json:"age"`
	Track Track     `json:"bibhag"`
	Goals UserGoals `json:"goals"`
}

// DefaultProfile returns the profile used when no snapshot exists yet.
func DefaultProfile() UserProfile {
	return UserProfile{
		Track: TrackScience,
		Goals: UserGoals{TopicsMastered: 20, StudyHours: 50, TargetAccuracy: 80},
	}
}
