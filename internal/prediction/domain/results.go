package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatistics summarizes an item's consumption over the trailing window.
type ItemStatistics struct {
	ItemID         int64   `json:"medicine_id"`
	AvgDaily       float64 `json:"avg_daily"`
	StdDaily       float64 `json:"std_daily"`
	TotalWindow    int     `json:"total_90d"`
	DaysWithData   int     `json:"days_with_data"`
	AvgWeekly      float64 `json:"avg_weekly"`
	SeasonalFactor float64 `json:"seasonal_factor"`
}

// TrendStatistics summarizes an item's full consumption history.
type TrendStatistics struct {
	ItemID          int64                  `json:"medicine_id"`
	Mean            float64                `json:"mean"`
	Std             float64                `json:"std"`
	Slope           float64                `json:"slope"`
	Intercept       float64                `json:"intercept"`
	RSquared        float64                `json:"r_squared"`
	GrowthRate      float64                `json:"growth_rate"`
	Trend           TrendLabel             `json:"trend"`
	SeasonalFactors map[time.Month]float64 `json:"-"`
	DataPoints      int                    `json:"data_points"`
}

// ExpiryRisk is the risk that a batch expires before it is dispensed.
type ExpiryRisk struct {
	ItemID               int64           `json:"medicine_id"`
	ItemName             string          `json:"medicine_name"`
	Category             string          `json:"category"`
	BatchNo              string          `json:"batch_no"`
	CurrentQuantity      int             `json:"current_quantity"`
	ExpiryDate           time.Time       `json:"expiry_date"`
	DaysToExpiry         int             `json:"days_to_expiry"`
	PredictedConsumption int             `json:"predicted_consumption"`
	QuantityAtRisk       int             `json:"quantity_at_risk"`
	RiskScore            float64         `json:"risk_score"`
	RiskLevel            RiskLevel       `json:"risk_level"`
	PotentialLoss        decimal.Decimal `json:"potential_loss"`
	Recommendation       string          `json:"recommendation"`
}

// StockoutRisk is the risk that an item runs out at its current burn rate.
type StockoutRisk struct {
	ItemID                     int64     `json:"medicine_id"`
	ItemName                   string    `json:"medicine_name"`
	Category                   string    `json:"category"`
	CurrentStock               int       `json:"current_stock"`
	AvgDailyConsumption        float64   `json:"avg_daily_consumption"`
	PredictedWeeklyConsumption int       `json:"predicted_weekly_consumption"`
	DaysUntilStockout          float64   `json:"days_until_stockout"`
	RiskLevel                  RiskLevel `json:"risk_level"`
	RecommendedOrder           int       `json:"recommended_order"`
	Recommendation             string    `json:"recommendation"`
}

// Forecast is a trend-based demand projection with a confidence interval.
type Forecast struct {
	ItemID            int64      `json:"medicine_id"`
	ItemName          string     `json:"medicine_name"`
	ForecastDays      int        `json:"forecast_days"`
	PredictedQuantity int        `json:"predicted_quantity"`
	LowerBound        int        `json:"lower_bound"`
	UpperBound        int        `json:"upper_bound"`
	Confidence        float64    `json:"confidence"`
	Trend             TrendLabel `json:"trend"`
	GrowthRate        float64    `json:"growth_rate"`
	SeasonalFactor    float64    `json:"seasonal_factor"`
	AnomaliesDetected int        `json:"anomalies_detected"`
}

// TrendCounts counts forecasts per trend label.
type TrendCounts struct {
	Increasing int `json:"increasing"`
	Stable     int `json:"stable"`
	Decreasing int `json:"decreasing"`
}

// ForecastSummary rolls up forecasts for every eligible item.
type ForecastSummary struct {
	ForecastDays     int         `json:"forecast_period_days"`
	ItemsAnalyzed    int         `json:"total_medicines_analyzed"`
	TotalPredicted   int         `json:"total_predicted_consumption"`
	TrendSummary     TrendCounts `json:"trend_summary"`
	TopByConsumption []Forecast  `json:"top_by_consumption"`
	TopByGrowth      []Forecast  `json:"top_by_growth"`
}

// Anomaly is one consumption day that deviates from its rolling baseline.
type Anomaly struct {
	ItemID    int64       `json:"medicine_id"`
	ItemName  string      `json:"medicine_name"`
	Date      time.Time   `json:"date"`
	Actual    int         `json:"actual_value"`
	Expected  float64     `json:"expected_value"`
	Deviation float64     `json:"deviation"`
	Type      AnomalyType `json:"anomaly_type"`
	Severity  Severity    `json:"severity"`
}

// PeriodTotal is the quantity dispensed in a calendar week or month.
type PeriodTotal struct {
	PeriodStart time.Time `json:"period_start"`
	Quantity    int       `json:"quantity"`
}

// TrendAnalysis is the detailed per-item trend report.
type TrendAnalysis struct {
	ItemID             int64              `json:"medicine_id"`
	ItemName           string             `json:"medicine_name"`
	Trend              TrendLabel         `json:"trend"`
	GrowthRateAnnual   float64            `json:"growth_rate_annual"`
	AverageDaily       float64            `json:"average_daily"`
	StandardDeviation  float64            `json:"standard_deviation"`
	DataQuality        string             `json:"data_quality"`
	SeasonalFactors    map[string]float64 `json:"seasonal_factors"`
	WeeklyConsumption  []PeriodTotal      `json:"weekly_consumption"`
	MonthlyConsumption []PeriodTotal      `json:"monthly_consumption"`
}

// ExpiryRiskSummary is the expiry section of the dashboard.
type ExpiryRiskSummary struct {
	CriticalCount    int             `json:"critical_count"`
	HighCount        int             `json:"high_count"`
	TotalAtRiskValue decimal.Decimal `json:"total_at_risk_value"`
	TopRisks         []ExpiryRisk    `json:"top_risks"`
}

// StockoutRiskSummary is the stockout section of the dashboard.
type StockoutRiskSummary struct {
	CriticalCount int            `json:"critical_count"`
	HighCount     int            `json:"high_count"`
	TopRisks      []StockoutRisk `json:"top_risks"`
}

// DashboardSummary is the top-level inventory health report.
type DashboardSummary struct {
	TotalItems          int                 `json:"total_medicines"`
	TotalBatches        int                 `json:"total_batches"`
	TotalInventoryValue decimal.Decimal     `json:"total_inventory_value"`
	ExpiryRisk          ExpiryRiskSummary   `json:"expiry_risk"`
	StockoutRisk        StockoutRiskSummary `json:"stockout_risk"`
	HealthScore         int                 `json:"health_score"`
}

// AlertKind distinguishes expiry alerts from stockout alerts.
type AlertKind string

const (
	AlertExpiry   AlertKind = "EXPIRY"
	AlertStockout AlertKind = "STOCKOUT"
)

// Alert is a CRITICAL or HIGH entry from either risk list.
type Alert struct {
	Kind           AlertKind        `json:"type"`
	Severity       RiskLevel        `json:"severity"`
	ItemID         int64            `json:"medicine_id"`
	ItemName       string           `json:"medicine"`
	BatchNo        string           `json:"batch,omitempty"`
	Message        string           `json:"message"`
	PotentialLoss  *decimal.Decimal `json:"potential_loss,omitempty"`
	Recommendation string           `json:"recommendation"`
}

// AlertFeed is the alert list with its per-severity counts.
type AlertFeed struct {
	TotalAlerts   int     `json:"total_alerts"`
	CriticalCount int     `json:"critical_count"`
	HighCount     int     `json:"high_count"`
	Alerts        []Alert `json:"alerts"`
}

// ItemOverview is an item's current stock next to its consumption rate.
// The averages are nil when the item has no recent consumption.
type ItemOverview struct {
	ItemID               int64    `json:"medicine_id"`
	ItemName             string   `json:"medicine_name"`
	Category             string   `json:"category"`
	CurrentStock         int      `json:"quantity"`
	AvgDailyConsumption  *float64 `json:"avg_daily,omitempty"`
	AvgWeeklyConsumption *float64 `json:"avg_weekly,omitempty"`
}
