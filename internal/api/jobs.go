package api

import (
	"sync"
	"time"

	"github.com/ghaggin/automl/internal/model"
	"github.com/google/uuid"
)

// Jobs keeps submitted model-builder jobs in memory.
type Jobs struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
	now  func() time.Time
}

func NewJobs() *Jobs {
	return &Jobs{
		jobs: map[string]model.Job{},
		now:  time.Now,
	}
}

func (j *Jobs) Create(ownerID, filename, query string) model.Job {
	job := model.Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Filename:  filename,
		Query:     query,
		CreatedAt: j.now(),
	}

	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()

	return job
}

// Get returns the job only if ownerID owns it.
func (j *Jobs) Get(ownerID, id string) (model.Job, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	job, ok := j.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return model.Job{}, false
	}
	return job, true
}

// sampleResults is the fixed result sheet the development backend reports for
// every job; no training happens here.
func sampleResults(job model.Job, now time.Time) *model.Results {
	return &model.Results{
		JobID:     job.ID,
		ModelType: "Random Forest Regressor",
		Accuracy:  0.87,
		RMSE:      0.23,
		MAE:       0.18,
		R2Score:   0.84,
		FeatureImportance: []model.FeatureImportance{
			{Feature: "Square Footage", Importance: 0.35},
			{Feature: "Location", Importance: 0.28},
			{Feature: "Bedrooms", Importance: 0.18},
			{Feature: "Bathrooms", Importance: 0.12},
			{Feature: "Year Built", Importance: 0.07},
		},
		Predictions: []model.Prediction{
			{Actual: 250000, Predicted: 245000, Difference: -5000},
			{Actual: 320000, Predicted: 328000, Difference: 8000},
			{Actual: 180000, Predicted: 175000, Difference: -5000},
		},
		GeneratedAt: now,
	}
}
