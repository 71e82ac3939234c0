package model

import "time"

type Job struct {
	ID        string    `json:"jobId"`
	OwnerID   string    `json:"ownerId"`
	Filename  string    `json:"filename"`
	Query     string    `json:"query"`
	CreatedAt time.Time `json:"createdAt"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type Prediction struct {
	Actual     float64 `json:"actual"`
	Predicted  float64 `json:"predicted"`
	Difference float64 `json:"difference"`
}

type Results struct {
	JobID             string              `json:"jobId"`
	ModelType         string              `json:"modelType"`
	Accuracy          float64             `json:"accuracy"`
	RMSE              float64             `json:"rmse"`
	MAE               float64             `json:"mae"`
	R2Score           float64             `json:"r2Score"`
	FeatureImportance []FeatureImportance `json:"featureImportance"`
	Predictions       []Prediction        `json:"predictions"`
	GeneratedAt       time.Time           `json:"timestamp"`
}
