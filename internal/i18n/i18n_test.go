package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mrab/sscprep/internal/model"
)

func TestMain(m *testing.M) {
	if err := Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestT(t *testing.T) {
	tests := []struct {
		name string
		lang string
		id   string
		want string
	}{
		{"english title", "en", "AppTitle", "SSC Prep"},
		{"bengali time up", "bn", "TimeUp", "সময় শেষ! আপনার পরীক্ষা জমা হয়ে গেছে।"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithLocalizer(context.Background(), NewLocalizer(tt.lang))
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s, %s) = %q, want %q", tt.lang, tt.id, got, tt.want)
			}
		})
	}
}

func TestTWithoutLocalizerFallsBack(t *testing.T) {
	if got := T(context.Background(), "AppTitle"); got != "SSC Prep" {
		t.Errorf("T = %q, want english fallback", got)
	}
}

func TestTMissingKey(t *testing.T) {
	ctx := WithLocalizer(context.Background(), NewLocalizer("en"))
	if got := T(ctx, "NoSuchMessage"); got != "NoSuchMessage" {
		t.Errorf("T = %q, want the message id back", got)
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "AppTitle")
	})
	handler := Middleware("en")(next)

	req := httptest.NewRequest(http.MethodGet, "/?lang=bn", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "এসএসসি প্রস্তুতি" {
		t.Errorf("bn title = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if got != "SSC Prep" {
		t.Errorf("default title = %q", got)
	}
}

func TestForLanguage(t *testing.T) {
	if got := ForLanguage(model.LangEnglish, "FeedbackCorrect"); got != "Excellent! Concept is clear." {
		t.Errorf("en feedback = %q", got)
	}
	if got := ForLanguage(model.LangBengali, "FeedbackCorrect"); got != "অসাধারণ! ধারণাটি পরিষ্কার।" {
		t.Errorf("bn feedback = %q", got)
	}
}

func TestForLanguageData(t *testing.T) {
	got := ForLanguageData(model.LangEnglish, "FeedbackIncorrect", map[string]any{"Option": "Newton"})
	if got != "Correct answer: Newton." {
		t.Errorf("en feedback = %q", got)
	}
	got = ForLanguageData(model.LangBengali, "FeedbackIncorrect", map[string]any{"Option": "নিউটন"})
	if got != "সঠিক উত্তর: নিউটন।" {
		t.Errorf("bn feedback = %q", got)
	}
}
