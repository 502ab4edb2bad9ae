package models

import "time"

// Canonical feature names, in the order the model expects them.
const (
	FeatureDayOfWeek    = "dayOfWeek"
	FeatureHourOfDay    = "hourOfDay"
	FeatureMinuteOfHour = "minuteOfHour"
	FeatureActivity     = "device_activity"
	FeatureBatteryLevel = "device_batteryLevel"
)

// FeatureNames lists the feature fields in canonical order.
var FeatureNames = []string{
	FeatureDayOfWeek,
	FeatureHourOfDay,
	FeatureMinuteOfHour,
	FeatureActivity,
	FeatureBatteryLevel,
}

// Features is input accepted by Predict.
// Implemented by FeatureMap, Vector and Batch.
type Features interface {
	// batch returns the rows handed to the model.
	batch() [][]float64
}

// FeatureMap maps feature names to values.
// Missing fields default to 0; unknown names are ignored.
type FeatureMap map[string]float64

// Row returns the values in FeatureNames order.
func (f FeatureMap) Row() []float64 {
	row := make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		row[i] = f[name]
	}
	return row
}

func (f FeatureMap) batch() [][]float64 {
	return [][]float64{f.Row()}
}

// Vector is a single, already ordered observation.
type Vector []float64

func (v Vector) batch() [][]float64 {
	return [][]float64{v}
}

// Batch is a set of already ordered observations passed to the model unchanged.
// Predict returns the label of the first row.
type Batch [][]float64

func (b Batch) batch() [][]float64 {
	return b
}

// FeaturesAt builds a FeatureMap for the given wall-clock time.
// dayOfWeek runs from 1 (Sunday) to 7 (Saturday).
func FeaturesAt(t time.Time, activity, batteryLevel float64) FeatureMap {
	return FeatureMap{
		FeatureDayOfWeek:    float64(t.Weekday()) + 1,
		FeatureHourOfDay:    float64(t.Hour()),
		FeatureMinuteOfHour: float64(t.Minute()),
		FeatureActivity:     activity,
		FeatureBatteryLevel: batteryLevel,
	}
}
