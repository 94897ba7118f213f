package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricModelAccuracy     = "ModelAccuracy"
	MetricReferenceAccuracy = "ReferenceRuleAccuracy"
	MetricTrainingRecords   = "TrainingRecords"
	MetricEvaluationRecords = "EvaluationRecords"
	MetricRuleCount         = "DistilledRuleCount"
	MetricTreeDepth         = "TreeDepth"
	MetricRunWarning        = "RunWarning"

	// Dimension Keys
	DimSite        = "Site"
	DimWarningCode = "WarningCode"

	// Metric Namespace
	MetricNamespace = "IrrigationDistiller"
)

// Canonical column names of the daily record table.
const (
	ColDate            = "date"
	ColTempMax         = "temp_max"
	ColTempMin         = "temp_min"
	ColTempMean        = "temp_mean"
	ColPrecipitationMM = "precipitation_mm"
	ColHumidityMean    = "humidity_mean"
	ColSoilMoisture    = "soil_moisture"
	ColDaylightSeconds = "daylight_seconds"
	ColMonth           = "month"
	ColSeason          = "season"
)

// RequiredColumns lists the columns every record source must supply.
var RequiredColumns = []string{
	ColDate,
	ColTempMax,
	ColTempMin,
	ColTempMean,
	ColPrecipitationMM,
	ColHumidityMean,
	ColSoilMoisture,
	ColDaylightSeconds,
}
