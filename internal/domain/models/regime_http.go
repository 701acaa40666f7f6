package models

// Requests for the regime HTTP endpoints. Defined in domain for consistency and reuse.

type HistoryRequest struct {
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type ClassifyRequest struct {
	Timestamp string   `json:"timestamp" validate:"required"`
	VIXLevel  *float64 `json:"vix_level"`
	Corr4W    *float64 `json:"corr_4w" validate:"omitempty,gte=-1,lte=1"`
	RV4W      *float64 `json:"rv_4w" validate:"omitempty,gte=0"`
}

type ReplayRequest struct {
	From  string `json:"from" validate:"required"`
	To    string `json:"to" validate:"required"`
	Limit int    `json:"limit" default:"5000" validate:"gte=1,lte=100000"`
}
