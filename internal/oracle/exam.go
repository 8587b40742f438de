package oracle

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mrab/sscprep/internal/model"
)

const (
	fullSyllabusChapter = "All Chapters (Full Syllabus)"
	boardCQChapter      = "Selected Chapters"
)

// GenerateFullExam composes a board mock: 15 full-syllabus MCQs plus
// up to 2 CQs. The two CQ requests are issued concurrently and the
// exam is not considered generated until both resolve; any request
// error fails the whole composition. A CQ request that resolves to no
// question is simply skipped.
func (c *Client) GenerateFullExam(ctx context.Context, subject model.Subject, lang model.Language) ([]model.MCQQuestion, []model.CQQuestion, error) {
	mcqs, err := c.GenerateQuestions(ctx, subject, fullSyllabusChapter, boardMCQCount, lang)
	if err != nil {
		return nil, nil, err
	}

	slots := make([]*model.CQQuestion, boardCQCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := range slots {
		i := i
		g.Go(func() error {
			cq, err := c.GenerateCreativeQuestion(gctx, subject, boardCQChapter, lang)
			if err != nil {
				return err
			}
			slots[i] = cq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var cqs []model.CQQuestion
	for _, cq := range slots {
		if cq != nil {
			cqs = append(cqs, *cq)
		}
	}
	return mcqs, cqs, nil
}
