package alerting

import "math"

// equalityEpsilon is the tolerance for equals/not_equals comparisons.
// Metric samples are floats produced by aggregation, so exact equality
// would misfire on representation error.
const equalityEpsilon = 1e-6

// Evaluate reports whether a metric sample breaches a rule's threshold
// under the given operator. Pure and deterministic: identical inputs
// always produce the identical result.
//
// Unknown operators return false; rule validation keeps them out of the
// store in the first place.
func Evaluate(operator string, sample, threshold float64) bool {
	switch operator {
	case OperatorLessThan:
		return sample < threshold
	case OperatorGreaterThan:
		return sample > threshold
	case OperatorLessOrEqual:
		return sample <= threshold
	case OperatorGreaterOrEqual:
		return sample >= threshold
	case OperatorEquals:
		return math.Abs(sample-threshold) <= equalityEpsilon
	case OperatorNotEquals:
		return math.Abs(sample-threshold) > equalityEpsilon
	default:
		return false
	}
}
