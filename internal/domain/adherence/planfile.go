package adherence

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlanFile es el formato YAML que acepta `import-plan`:
//
//	patient_id: p-1
//	timezone: Asia/Kolkata
//	medications:
//	  - name: Lisinopril
//	    dosage: 10mg
//	    times: ["08:00"]
//	    food: after
//	    stock: 30
type PlanFile struct {
	PatientID   string     `yaml:"patient_id"`
	Timezone    string     `yaml:"timezone"`
	Medications []PlanItem `yaml:"medications"`
}

func ParsePlanFile(r io.Reader) (PlanFile, error) {
	var pf PlanFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		if err == io.EOF {
			return PlanFile{}, fmt.Errorf("%w: empty plan file", ErrInvalidInput)
		}
		return PlanFile{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	pf.PatientID = strings.TrimSpace(pf.PatientID)
	pf.Timezone = strings.TrimSpace(pf.Timezone)
	if pf.PatientID == "" {
		return PlanFile{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if len(pf.Medications) == 0 {
		return PlanFile{}, fmt.Errorf("%w: medications is empty", ErrInvalidInput)
	}
	return pf, nil
}
