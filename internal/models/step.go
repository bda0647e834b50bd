package models

import "fmt"

// Step is the position of a session inside the intake flow. The set is closed:
// values outside the constants below are rejected when loading from storage.
type Step int

const (
	StepIdle Step = iota
	StepBranch
	StepCategory
	StepContent
	StepPatientName
	StepPatientPhone
)

var stepNames = map[Step]string{
	StepIdle:         "idle",
	StepBranch:       "branch",
	StepCategory:     "category",
	StepContent:      "content",
	StepPatientName:  "patient_name",
	StepPatientPhone: "patient_phone",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Valid reports whether s is a member of the closed step set.
func (s Step) Valid() bool {
	_, ok := stepNames[s]
	return ok
}

// ParseStep maps a stored step name back to its Step value.
func ParseStep(name string) (Step, error) {
	for step, n := range stepNames {
		if n == name {
			return step, nil
		}
	}
	return StepIdle, fmt.Errorf("unknown step %q", name)
}
