package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mrab/sscprep/internal/history"
	"github.com/mrab/sscprep/internal/i18n"
	"github.com/mrab/sscprep/internal/model"
	"github.com/mrab/sscprep/internal/oracle"
	"github.com/mrab/sscprep/internal/session"
	"github.com/mrab/sscprep/internal/store"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeOracle serves canned questions for the API round-trip tests.
type fakeOracle struct {
	mcqs   []model.MCQQuestion
	cq     *model.CQQuestion
	genErr error
}

func (f *fakeOracle) GenerateQuestions(context.Context, model.Subject, string, int, model.Language) ([]model.MCQQuestion, error) {
	return f.mcqs, f.genErr
}

func (f *fakeOracle) GenerateCreativeQuestion(context.Context, model.Subject, string, model.Language) (*model.CQQuestion, error) {
	return f.cq, f.genErr
}

func (f *fakeOracle) GenerateFullExam(context.Context, model.Subject, model.Language) ([]model.MCQQuestion, []model.CQQuestion, error) {
	return f.mcqs, nil, f.genErr
}

func (f *fakeOracle) GradeCreativeAnswer(_ context.Context, q *model.CQQuestion, _ model.CQAnswer, _ model.Language) ([]model.GradingResult, error) {
	rs := make([]model.GradingResult, 0, len(model.PartKeys))
	for _, k := range model.PartKeys {
		rs = append(rs, model.GradingResult{
			QuestionID:    q.ID,
			ObtainedMarks: 1,
			MaxMarks:      q.Parts[k].Marks,
			Feedback:      "graded",
			Status:        model.StatusPartial,
		})
	}
	return rs, nil
}

func mcqBatch(n int) []model.MCQQuestion {
	qs := make([]model.MCQQuestion, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.MCQQuestion{
			ID:       fmt.Sprintf("mcq-%d", i),
			Question: fmt.Sprintf("question %d", i),
			Options: []model.MCQOption{
				{ID: "a", Text: "right"},
				{ID: "b", Text: "wrong"},
			},
			CorrectOptionID: "a",
		})
	}
	return qs
}

func newTestRouter(t *testing.T, o session.Oracle) (chi.Router, *store.Store) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hist := history.New(nil, db.SaveHistory)
	engine := session.New(o, hist, session.WithManualClock())
	h, err := New(engine, hist, db)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	r := chi.NewRouter()
	h.Routes(r)
	return r, db
}

func doJSON(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]apiError
	decodeBody(t, rec, &body)
	return body["error"].Code
}

func TestStartPractice(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{mcqs: mcqBatch(5)})

	rec := doJSON(t, r, http.MethodPost, "/api/practice/start",
		`{"subject": "পদার্থবিজ্ঞান", "chapter": "গতি", "type": "MCQ", "count": 5, "language": "bn"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}

	var sess model.ExamSession
	decodeBody(t, rec, &sess)
	if len(sess.Questions) != 5 || sess.State != model.StateActive {
		t.Errorf("session = %d questions, state %s", len(sess.Questions), sess.State)
	}
	if sess.DurationMinutes != 5 {
		t.Errorf("DurationMinutes = %d, want 5", sess.DurationMinutes)
	}
}

func TestStartPracticeValidation(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{mcqs: mcqBatch(5)})

	tests := []struct {
		name string
		body string
	}{
		{"unknown type", `{"subject": "s", "chapter": "c", "type": "ESSAY", "count": 5, "language": "bn"}`},
		{"unknown language", `{"subject": "s", "chapter": "c", "type": "MCQ", "count": 5, "language": "fr"}`},
		{"missing chapter", `{"subject": "s", "type": "MCQ", "count": 5, "language": "bn"}`},
		{"count out of range", `{"subject": "s", "chapter": "c", "type": "MCQ", "count": 500, "language": "bn"}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodPost, "/api/practice/start", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestStartPracticeEmptyGeneration(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{})
	rec := doJSON(t, r, http.MethodPost, "/api/practice/start",
		`{"subject": "s", "chapter": "c", "type": "MCQ", "count": 5, "language": "en"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422\nbody: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "empty_generation" {
		t.Errorf("error code = %q, want empty_generation", code)
	}
}

func TestStartPracticeOracleDown(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{genErr: oracle.ErrUnavailable})
	rec := doJSON(t, r, http.MethodPost, "/api/practice/start",
		`{"subject": "s", "chapter": "c", "type": "MCQ", "count": 5, "language": "en"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if code := errorCode(t, rec); code != "oracle_unavailable" {
		t.Errorf("error code = %q, want oracle_unavailable", code)
	}
}

func TestStartWhileActiveConflicts(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{mcqs: mcqBatch(5)})
	body := `{"subject": "s", "chapter": "c", "type": "MCQ", "count": 5, "language": "bn"}`

	if rec := doJSON(t, r, http.MethodPost, "/api/practice/start", body); rec.Code != http.StatusCreated {
		t.Fatalf("first start status = %d", rec.Code)
	}
	rec := doJSON(t, r, http.MethodPost, "/api/practice/start", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "session_active" {
		t.Errorf("error code = %q, want session_active", code)
	}
}

func TestSessionStatus(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{mcqs: mcqBatch(5)})

	if rec := doJSON(t, r, http.MethodGet, "/api/session", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status without session = %d, want 404", rec.Code)
	}

	doJSON(t, r, http.MethodPost, "/api/practice/start",
		`{"subject": "s", "chapter": "c", "type": "MCQ", "count": 5, "language": "bn"}`)

	rec := doJSON(t, r, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status sessionStatus
	decodeBody(t, rec, &status)
	if status.Session == nil || status.Timer == nil {
		t.Fatalf("status = %+v, want session and timer", status)
	}
	if status.Timer.Display != "5:00" || status.Timer.Low {
		t.Errorf("timer = %+v, want fresh 5:00 and not low", status.Timer)
	}
}

func TestAnswerAdvanceFinishFlow(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{mcqs: mcqBatch(2)})
	doJSON(t, r, http.MethodPost, "/api/practice/start",
		`{"subject": "s", "chapter": "c", "type": "MCQ", "count": 2, "language": "bn"}`)

	rec := doJSON(t, r, http.MethodPost, "/api/session/answer/mcq-0",
		`{"type": "MCQ", "optionId": "a"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("answer status = %d\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodPost, "/api/session/advance", `{"delta": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("advance status = %d", rec.Code)
	}
	var cursor map[string]int
	decodeBody(t, rec, &cursor)
	if cursor["cursor"] != 1 {
		t.Errorf("cursor = %d, want 1", cursor["cursor"])
	}

	rec = doJSON(t, r, http.MethodPost, "/api/session/finish", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d\nbody: %s", rec.Code, rec.Body.String())
	}
	var finish struct {
		Results []model.GradingResult `json:"results"`
	}
	decodeBody(t, rec, &finish)
	if len(finish.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(finish.Results))
	}
	if finish.Results[0].Status != model.StatusCorrect {
		t.Errorf("first result = %+v, want correct", finish.Results[0])
	}

	rec = doJSON(t, r, http.MethodGet, "/api/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/session/dismiss", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodGet, "/api/results", ""); rec.Code != http.StatusNotFound {
		t.Errorf("results after dismiss = %d, want 404", rec.Code)
	}
}

func TestDashboardDefaults(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{})
	rec := doJSON(t, r, http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var dash dashboardResponse
	decodeBody(t, rec, &dash)
	if dash.Profile != model.DefaultProfile() {
		t.Errorf("profile = %+v, want defaults", dash.Profile)
	}
	if dash.Sessions != 0 || len(dash.Recent) != 0 {
		t.Errorf("sessions = %d, recent = %v, want empty", dash.Sessions, dash.Recent)
	}
	if len(dash.Trend) != 1 || dash.Trend[0].Label != "N/A" {
		t.Errorf("trend = %v, want the single placeholder point", dash.Trend)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	r, db := newTestRouter(t, &fakeOracle{})

	rec := doJSON(t, r, http.MethodPut, "/api/profile",
		`{"name": "Rahim", "age": "16", "bibhag": "বিজ্ঞান", "goals": {"topicsMastered": 10, "studyHours": 30, "targetAccuracy": 85}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put profile status = %d\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/api/profile", "")
	var profile model.UserProfile
	decodeBody(t, rec, &profile)
	if profile.Name != "Rahim" || profile.Goals.TargetAccuracy != 85 {
		t.Errorf("profile = %+v", profile)
	}

	// The snapshot is written through, not just cached.
	persisted, err := db.LoadProfile()
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if persisted != profile {
		t.Errorf("persisted = %+v, want %+v", persisted, profile)
	}
}

func TestPutGoals(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{})
	rec := doJSON(t, r, http.MethodPut, "/api/profile/goals",
		`{"topicsMastered": 5, "studyHours": 10, "targetAccuracy": 95}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\nbody: %s", rec.Code, rec.Body.String())
	}
	var profile model.UserProfile
	decodeBody(t, rec, &profile)
	if profile.Goals != (model.UserGoals{TopicsMastered: 5, StudyHours: 10, TargetAccuracy: 95}) {
		t.Errorf("goals = %+v", profile.Goals)
	}
	if profile.Track != model.TrackScience {
		t.Errorf("track = %q, want the default preserved", profile.Track)
	}
}

func TestPutGoalsValidation(t *testing.T) {
	r, _ := newTestRouter(t, &fakeOracle{})
	rec := doJSON(t, r, http.MethodPut, "/api/profile/goals",
		`{"topicsMastered": 5, "studyHours": 10, "targetAccuracy": 150}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
