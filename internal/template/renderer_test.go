package template

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ghaggin/automl/internal/middleware"
	"github.com/ghaggin/automl/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	user := &model.Session{ID: "1", Email: "a@b.com", Name: "Ada"}

	tests := []struct {
		tmpl string
		data *Data
		want []string
	}{
		{"landing.html", &Data{PageTitle: "welcome"}, []string{`action="/login"`, `action="/register"`}},
		{"home.html", &Data{PageTitle: "home", User: user}, []string{"Welcome, Ada", `action="/logout"`}},
		{"build.html", &Data{PageTitle: "build", User: user, Error: "Please upload a CSV file", Query: "price"},
			[]string{"Please upload a CSV file", "price", `enctype="multipart/form-data"`}},
		{"results.html", &Data{PageTitle: "results", User: user, JobID: "j1", Results: &model.Results{
			ModelType:         "Random Forest Regressor",
			Accuracy:          0.87,
			FeatureImportance: []model.FeatureImportance{{Feature: "Location", Importance: 0.28}},
		}}, []string{"Random Forest Regressor", "87.0%", "Location", "28%", "/results/j1/download"}},
		{"loading.html", &Data{PageTitle: "loading"}, []string{`http-equiv="refresh"`}},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			require.NoError(t, Render(rr, req, tt.tmpl, tt.data))
			assert.Equal(t, http.StatusOK, rr.Code)
			for _, w := range tt.want {
				assert.Contains(t, rr.Body.String(), w)
			}
		})
	}
}

func TestRenderStatus_flashes(t *testing.T) {
	rr := httptest.NewRecorder()
	err := RenderStatus(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusServiceUnavailable, "loading.html", &Data{
		Flashes: []middleware.Flash{{Level: "error", Message: "Login failed"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `toast-error`)
	assert.Contains(t, rr.Body.String(), "Login failed")
}

func TestRender_missingTemplate(t *testing.T) {
	rr := httptest.NewRecorder()
	err := Render(rr, httptest.NewRequest(http.MethodGet, "/", nil), "nope.html", &Data{})
	assert.Error(t, err)
	assert.Zero(t, rr.Body.Len())
}
