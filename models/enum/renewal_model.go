package enum

type RenewalModel string

const (
	RenewalModelAuto   RenewalModel = "auto"
	RenewalModelManual RenewalModel = "manual"
	RenewalModelExpire RenewalModel = "expire"
)

func (r RenewalModel) IsValid() bool {
	switch r {
	case RenewalModelAuto, RenewalModelManual, RenewalModelExpire:
		return true
	}
	return false
}
