package domain

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sex values accepted for a Student.
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "O"
)

var phonePattern = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)

// ValidPhone accepts "(11) 99999-9999" and "(11) 9999-9999".
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale || s == SexOther
}

// Student is a trainer's client being tracked.
type Student struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID primitive.ObjectID `bson:"trainerId" json:"trainerId"` // owning trainer (tenant)

	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"` // unique per trainer
	Phone     string    `bson:"phone" json:"phone"`
	BirthDate time.Time `bson:"birthDate" json:"birthDate"`
	Sex       Sex       `bson:"sex" json:"sex"`
	Address   string    `bson:"address,omitempty" json:"address,omitempty"`

	// Physical baseline
	HeightM         float64 `bson:"heightM" json:"heightM"`                 // metres
	InitialWeightKg float64 `bson:"initialWeightKg" json:"initialWeightKg"` // kilograms

	Objective string `bson:"objective,omitempty" json:"objective,omitempty"`
	Notes     string `bson:"notes,omitempty" json:"notes,omitempty"` // medical history, restrictions

	Active    bool      `bson:"active" json:"active"`
	StartDate time.Time `bson:"startDate" json:"startDate"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// AgeOn returns the student's age in whole years on the given day.
func (s *Student) AgeOn(day time.Time) int {
	by, bm, bd := s.BirthDate.Date()
	y, m, d := day.Date()
	age := y - by
	if m < bm || (m == bm && d < bd) {
		age--
	}
	return age
}

// InitialBMI is the BMI for the baseline weight, or nil if height or weight
// are missing.
func (s *Student) InitialBMI() *float64 {
	return BMI(s.InitialWeightKg, s.HeightM)
}
