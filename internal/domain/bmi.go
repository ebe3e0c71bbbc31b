package domain

// BMICategory is the WHO classification for a body-mass index.
type BMICategory string

const (
	BMIUnknown     BMICategory = "not_calculated"
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObesityI    BMICategory = "obesity_1"
	BMIObesityII   BMICategory = "obesity_2"
	BMIObesityIII  BMICategory = "obesity_3"
)

// BMI computes weight / height². Returns nil when either input is not positive.
func BMI(weightKg, heightM float64) *float64 {
	if weightKg <= 0 || heightM <= 0 {
		return nil
	}
	v := weightKg / (heightM * heightM)
	return &v
}

// ClassifyBMI maps a BMI onto closed-open bands:
// [0,18.5) [18.5,25) [25,30) [30,35) [35,40) [40,∞).
func ClassifyBMI(bmi *float64) BMICategory {
	if bmi == nil {
		return BMIUnknown
	}
	switch v := *bmi; {
	case v < 18.5:
		return BMIUnderweight
	case v < 25:
		return BMINormal
	case v < 30:
		return BMIOverweight
	case v < 35:
		return BMIObesityI
	case v < 40:
		return BMIObesityII
	default:
		return BMIObesityIII
	}
}

// Label is the human readable form used in reports.
func (c BMICategory) Label() string {
	switch c {
	case BMIUnderweight:
		return "Underweight"
	case BMINormal:
		return "Normal weight"
	case BMIOverweight:
		return "Overweight"
	case BMIObesityI:
		return "Obesity class I"
	case BMIObesityII:
		return "Obesity class II"
	case BMIObesityIII:
		return "Obesity class III"
	default:
		return "Not calculated"
	}
}

// Color is the badge color shown next to the category.
func (c BMICategory) Color() string {
	switch c {
	case BMIUnderweight:
		return "blue"
	case BMINormal:
		return "green"
	case BMIOverweight:
		return "yellow"
	case BMIUnknown:
		return "gray"
	default:
		return "red"
	}
}
