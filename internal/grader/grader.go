// Package grader computes per-question grading results and session
// totals. MCQ grading is pure local computation; CQ grading is fully
// delegated to the external oracle, with this package responsible only
// for request packaging and response-shape checks.
package grader

import (
	"context"
	"log/slog"
	"math"

	"github.com/mrab/sscprep/internal/i18n"
	"github.com/mrab/sscprep/internal/model"
)

// CQGrader grades one creative question's four parts in one exchange.
type CQGrader interface {
	GradeCreativeAnswer(ctx context.Context, q *model.CQQuestion, ans model.CQAnswer, lang model.Language) ([]model.GradingResult, error)
}

// GradeMCQ scores a multiple-choice answer: 1 mark iff the chosen
// option is the correct one. Feedback is a fixed templated string in
// the session language.
func GradeMCQ(q *model.MCQQuestion, ans *model.MCQAnswer, lang model.Language) model.GradingResult {
	correct := ans != nil && ans.OptionID == q.CorrectOptionID

	var feedback string
	if correct {
		feedback = i18n.ForLanguage(lang, "FeedbackCorrect")
	} else {
		optionText := q.CorrectOptionID
		if opt := q.CorrectOption(); opt != nil {
			optionText = opt.Text
		}
		feedback = i18n.ForLanguageData(lang, "FeedbackIncorrect", map[string]any{"Option": optionText})
	}

	result := model.GradingResult{
		QuestionID: q.ID,
		MaxMarks:   1,
		Feedback:   feedback,
		Status:     model.StatusIncorrect,
	}
	if correct {
		result.ObtainedMarks = 1
		result.Status = model.StatusCorrect
	}
	return result
}

// GradeSession grades every question in sequence order: MCQs locally,
// CQs through the oracle (one call per CQ, four results each).
// Unanswered MCQs score zero; unanswered CQ parts go to the oracle as
// empty. An oracle failure aborts grading with no partial result. A
// malformed CQ is skipped with a warning rather than failing the rest
// of the session.
func GradeSession(ctx context.Context, cq CQGrader, questions []model.Question, answers map[string]model.Answer, lang model.Language) ([]model.GradingResult, error) {
	var results []model.GradingResult
	for _, q := range questions {
		switch q.Kind() {
		case model.KindMCQ:
			results = append(results, GradeMCQ(q.MCQ, answers[q.MCQ.ID].MCQ, lang))
		case model.KindCQ:
			if err := q.CQ.Validate(); err != nil {
				slog.Warn("skipping malformed creative question", "question_id", q.ID(), "error", err)
				continue
			}
			ans := model.CQAnswer{}
			if a, ok := answers[q.CQ.ID]; ok && a.CQ != nil {
				ans = *a.CQ
			}
			partResults, err := cq.GradeCreativeAnswer(ctx, q.CQ, ans, lang)
			if err != nil {
				return nil, err
			}
			results = append(results, partResults...)
		}
	}
	return results, nil
}

// Summarize rolls grading results into session totals. Accuracy is the
// rounded percentage of obtained over maximum marks, defined as 0 when
// the maximum is 0.
func Summarize(results []model.GradingResult) (obtained, total float64, accuracy int) {
	for _, r := range results {
		obtained += r.ObtainedMarks
		total += r.MaxMarks
	}
	if total > 0 {
		accuracy = int(math.Round(obtained / total * 100))
	}
	return obtained, total, accuracy
}
