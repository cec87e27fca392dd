package domain

// CardinalityClass describes how selective a column is, which decides the
// index intent suggested for it.
type CardinalityClass string

const (
	// CardinalityUnique columns become unique-key candidates.
	CardinalityUnique CardinalityClass = "unique"
	// CardinalitySelective columns become normal-index candidates.
	CardinalitySelective CardinalityClass = "selective"
	// CardinalityLow columns are not worth indexing.
	CardinalityLow CardinalityClass = "low"
)

const (
	uniqueKeyPercentage   = 95.0
	normalIndexPercentage = 10.0
)

// ClassifyUniqueness maps the share of distinct values (in percent of all rows,
// nulls included) to a cardinality class. Exactly 95% is neither unique nor
// selective, matching the strict bounds used when suggesting indexes.
func ClassifyUniqueness(uniquePercentage float64) CardinalityClass {
	switch {
	case uniquePercentage > uniqueKeyPercentage:
		return CardinalityUnique
	case uniquePercentage > normalIndexPercentage && uniquePercentage < uniqueKeyPercentage:
		return CardinalitySelective
	default:
		return CardinalityLow
	}
}
