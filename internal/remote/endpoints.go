package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/finsight-labs/finsight-go/internal/models"
)

// Dashboard fetches KPIs, trend and risk distribution.
func (c *Client) Dashboard(ctx context.Context) Result[models.Dashboard] {
	return Fetch[models.Dashboard](ctx, c, http.MethodGet, "/analytics/dashboard", nil, nil)
}

// Clients fetches one page of clients, optionally filtered by search.
func (c *Client) Clients(ctx context.Context, skip, limit int, search string) Result[[]models.Client] {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("search", search)
	return Fetch[[]models.Client](ctx, c, http.MethodGet, "/clients/", q, nil)
}

// Operations fetches the most recent regional operation statuses.
func (c *Client) Operations(ctx context.Context, limit int) Result[[]models.Operation] {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return Fetch[[]models.Operation](ctx, c, http.MethodGet, "/operations/", q, nil)
}

// Transactions fetches one page of transactions.
func (c *Client) Transactions(ctx context.Context, skip, limit int) Result[[]models.Transaction] {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	return Fetch[[]models.Transaction](ctx, c, http.MethodGet, "/transactions", q, nil)
}

// RiskOverview fetches aggregated risk metrics.
func (c *Client) RiskOverview(ctx context.Context) Result[models.RiskOverview] {
	return Fetch[models.RiskOverview](ctx, c, http.MethodGet, "/risk/overview", nil, nil)
}

// PredictSLA asks the ML service for an SLA breach prediction.
func (c *Client) PredictSLA(ctx context.Context, req models.PredictionRequest) Result[models.Prediction] {
	return Fetch[models.Prediction](ctx, c, http.MethodPost, "/ml/predict-sla", nil, req)
}

// PredictFailure asks the ML service for a transaction failure prediction.
func (c *Client) PredictFailure(ctx context.Context, req models.PredictionRequest) Result[models.Prediction] {
	return Fetch[models.Prediction](ctx, c, http.MethodPost, "/ml/predict-failure", nil, req)
}

// DetectAnomaly asks the ML service whether the transaction is anomalous.
func (c *Client) DetectAnomaly(ctx context.Context, req models.PredictionRequest) Result[models.Prediction] {
	return Fetch[models.Prediction](ctx, c, http.MethodPost, "/ml/detect-anomaly", nil, req)
}
