package models

// Envelope is the response wrapper used by every FinSight API endpoint.
// When Success is false, Error is populated and Data must not be trusted.
type Envelope[T any] struct {
	Success bool    `json:"success"`
	Data    T       `json:"data"`
	Error   *string `json:"error,omitempty"`
	Meta    *Meta   `json:"meta,omitempty"`
}

// Meta carries optional server timing information.
type Meta struct {
	ExecutionTimeMS int `json:"execution_time_ms"`
}

// KPIs are the headline dashboard figures.
type KPIs struct {
	TotalVolume       float64 `json:"total_volume"`
	TotalTransactions int     `json:"total_transactions"`
	HighRiskCount     int     `json:"high_risk_count"`
	SLABreachRate     float64 `json:"sla_breach_rate"`
}

// TrendPoint is one day of transaction volume.
type TrendPoint struct {
	Day          string  `json:"day"`
	Volume       float64 `json:"volume"`
	Count        int     `json:"count"`
	Rolling7dAvg float64 `json:"rolling_7d_avg"`
}

// RiskClient is a high-exposure client in the dashboard risk distribution.
type RiskClient struct {
	ClientID         int     `json:"client_id"`
	Name             string  `json:"name"`
	RiskRating       string  `json:"risk_rating"`
	Region           string  `json:"region"`
	TotalExposure    float64 `json:"total_exposure"`
	RegionRank       int     `json:"region_rank"`
	ExposureQuartile int     `json:"exposure_quartile"`
}

// Dashboard is the payload of GET /analytics/dashboard.
type Dashboard struct {
	KPIs             KPIs         `json:"kpis"`
	Trend            []TrendPoint `json:"trend"`
	RiskDistribution []RiskClient `json:"risk_distribution"`
}

// Client is one row of GET /clients/.
type Client struct {
	ClientID   int    `json:"client_id"`
	Name       string `json:"name"`
	Region     string `json:"region"`
	RiskRating string `json:"risk_rating"`
	JoinedDate string `json:"joined_date"` // ISO-8601, timezone optional
}

// Operation is one row of GET /operations/.
type Operation struct {
	OperationID string `json:"operation_id"`
	Region      string `json:"region"`
	Status      string `json:"status"` // "Operational" | "Intervention Required" | "SLA Breach" | ...
	LastUpdated string `json:"last_updated"`
	Details     string `json:"details"`
}

// Transaction is one row of GET /transactions.
type Transaction struct {
	TransactionID   string  `json:"transaction_id"`
	ClientID        int     `json:"client_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	TransactionDate string  `json:"transaction_date"`
	RiskRating      string  `json:"risk_rating,omitempty"`
	SLABreachFlag   bool    `json:"sla_breach_flag"`
}

// RegionalRisk is aggregated exposure for one region.
type RegionalRisk struct {
	Region   string  `json:"region"`
	Exposure float64 `json:"exposure"`
	Count    int     `json:"count"`
}

// RatingCount is the number of clients carrying one risk rating.
type RatingCount struct {
	Rating string `json:"rating"`
	Count  int    `json:"count"`
}

// FlaggedTransaction is a recent large or failed transaction.
type FlaggedTransaction struct {
	ID     string  `json:"id"`
	Client string  `json:"client"`
	Amount float64 `json:"amount"`
	Region string  `json:"region"`
	Date   string  `json:"date"`
	Status string  `json:"status"`
}

// RiskOverview is the payload of GET /risk/overview.
type RiskOverview struct {
	RegionalRisk        []RegionalRisk       `json:"regional_risk"`
	RiskDistribution    []RatingCount        `json:"risk_distribution"`
	FlaggedTransactions []FlaggedTransaction `json:"flagged_transactions"`
}

// PredictionRequest is the body of the /ml/* endpoints.
type PredictionRequest struct {
	Amount          float64 `json:"amount"`
	RiskRating      string  `json:"risk_rating"`
	Region          string  `json:"region"`
	HourOfDay       int     `json:"hour_of_day"`
	TransactionType string  `json:"transaction_type"`
}

// Prediction is the result of an ML endpoint. Which fields are set depends
// on the model.
type Prediction struct {
	Prediction   *int     `json:"prediction,omitempty"`
	Probability  *float64 `json:"probability,omitempty"`
	IsAnomaly    *int     `json:"is_anomaly,omitempty"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty"`
	ModelVersion string   `json:"model_version"`
}
