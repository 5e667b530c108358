package enum

type Cadence string

const (
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceAnnually  Cadence = "annually"
)

// MonthsPerPeriod returns the length of one billing period, or 0 for an
// unknown cadence.
func (c Cadence) MonthsPerPeriod() int {
	switch c {
	case CadenceMonthly:
		return 1
	case CadenceQuarterly:
		return 3
	case CadenceAnnually:
		return 12
	}
	return 0
}

func (c Cadence) IsValid() bool {
	return c.MonthsPerPeriod() > 0
}
