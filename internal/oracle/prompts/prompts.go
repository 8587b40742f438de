package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	"github.com/mrab/sscprep/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce sync.Once
	loadErr  error
	tmpls    map[string]*template.Template
)

var templateNames = []string{"generate_mcq", "generate_cq", "grade_cq"}

// Load parses the embedded prompt templates. Safe to call more than
// once; the templates are parsed a single time.
func Load() error {
	loadOnce.Do(func() {
		tmpls = make(map[string]*template.Template, len(templateNames))
		for _, name := range templateNames {
			content, err := templateFS.ReadFile("templates/" + name + ".txt")
			if err != nil {
				loadErr = fmt.Errorf("read prompt template %s: %w", name, err)
				return
			}
			t, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			tmpls[name] = t
		}
	})
	return loadErr
}

func languageLine(lang model.Language, what string) string {
	if lang == model.LangBengali {
		return fmt.Sprintf("The %s must be in Bengali language (বাংলা ভাষা).", what)
	}
	return fmt.Sprintf("The %s must be in English language.", what)
}

func execute(name string, data any) (string, error) {
	if tmpls == nil {
		return "", fmt.Errorf("prompt templates not initialized: call Load first")
	}
	t, ok := tmpls[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type mcqData struct {
	Subject  model.Subject
	Chapter  string
	Count    int
	LangLine string
}

// BuildGenerateMCQs builds the prompt for a batch of board-style MCQs.
func BuildGenerateMCQs(subject model.Subject, chapter string, count int, lang model.Language) (string, error) {
	return execute("generate_mcq", mcqData{
		Subject:  subject,
		Chapter:  chapter,
		Count:    count,
		LangLine: languageLine(lang, "questions and explanations"),
	})
}

type cqData struct {
	Subject  model.Subject
	Chapter  string
	LangLine string
}

// BuildGenerateCQ builds the prompt for one creative question.
func BuildGenerateCQ(subject model.Subject, chapter string, lang model.Language) (string, error) {
	return execute("generate_cq", cqData{
		Subject:  subject,
		Chapter:  chapter,
		LangLine: languageLine(lang, "stem, questions, and parts"),
	})
}

type gradeData struct {
	Stem     string
	PartA    string
	PartB    string
	PartC    string
	PartD    string
	MarksA   float64
	MarksB   float64
	MarksC   float64
	MarksD   float64
	LangLine string
}

// BuildGradeCQ builds the grading prompt for a creative question. The
// learner's per-part answers are attached separately as chat content
// parts so that inline images can travel with their text.
func BuildGradeCQ(q *model.CQQuestion, lang model.Language) (string, error) {
	return execute("grade_cq", gradeData{
		Stem:     q.Stem,
		PartA:    q.Parts[model.PartA].Question,
		PartB:    q.Parts[model.PartB].Question,
		PartC:    q.Parts[model.PartC].Question,
		PartD:    q.Parts[model.PartD].Question,
		MarksA:   q.Parts[model.PartA].Marks,
		MarksB:   q.Parts[model.PartB].Marks,
		MarksC:   q.Parts[model.PartC].Marks,
		MarksD:   q.Parts[model.PartD].Marks,
		LangLine: languageLine(lang, "feedback"),
	})
}
