package intake

// BookingStatus tracks whether the intake is ready to be booked with a doctor.
type BookingStatus string

const (
	BookingCollecting BookingStatus = "collecting"
	BookingReady      BookingStatus = "ready"
	BookingBooked     BookingStatus = "booked"
)

type Temperature struct {
	Value *float64 `json:"value,omitempty"`
	Unit  *string  `json:"unit,omitempty"`
}

type Weight struct {
	Value *float64 `json:"value,omitempty"`
	Unit  *string  `json:"unit,omitempty"`
}

type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

// TriageDecision is the urgency call made once vitals are in.
type TriageDecision struct {
	Decision *string  `json:"decision,omitempty"`
	Reason   *string  `json:"reason,omitempty"`
	Factors  []string `json:"factors,omitempty"`
}

type Vitals struct {
	Name           *string         `json:"name,omitempty"`
	Age            *int            `json:"age,omitempty"`
	Gender         *string         `json:"gender,omitempty"`
	Temperature    *Temperature    `json:"temperature,omitempty"`
	Weight         *Weight         `json:"weight,omitempty"`
	BloodPressure  *BloodPressure  `json:"bloodPressure,omitempty"`
	Status         *string         `json:"status,omitempty"`
	Collected      bool            `json:"collected"`
	StageCompleted bool            `json:"stageCompleted"`
	Triage         *TriageDecision `json:"triage,omitempty"`
}

// Handover is the SBAR summary handed to the consulting doctor.
type Handover struct {
	Situation      string `json:"situation"`
	Background     string `json:"background"`
	Assessment     string `json:"assessment"`
	Recommendation string `json:"recommendation"`
}

// ClinicalRecord is the patient's accumulating intake data.
type ClinicalRecord struct {
	ChiefComplaint           *string `json:"chiefComplaint"`
	HPI                      *string `json:"hpi"`
	FamilyHistory            *string `json:"familyHistory"`
	SocialHistory            *string `json:"socialHistory"`
	GuidelineRecommendations *string `json:"guidelineRecommendations"`

	MedicalRecords     []string `json:"medicalRecords"`
	Medications        []string `json:"medications"`
	Allergies          []string `json:"allergies"`
	PastMedicalHistory []string `json:"pastMedicalHistory"`
	ReviewOfSystems    []string `json:"reviewOfSystems"`

	RecordsCheckCompleted bool `json:"recordsCheckCompleted"`
	HistoryCheckCompleted bool `json:"historyCheckCompleted"`

	Vitals Vitals `json:"vitals"`

	ActiveStage     Stage         `json:"activeStage"`
	BookingStatus   BookingStatus `json:"bookingStatus"`
	Handover        *Handover     `json:"handover,omitempty"`
	AppointmentDate *string       `json:"appointmentDate,omitempty"`
}

// NewRecord returns the empty record a session starts with.
func NewRecord() ClinicalRecord {
	return ClinicalRecord{
		MedicalRecords:     []string{},
		Medications:        []string{},
		Allergies:          []string{},
		PastMedicalHistory: []string{},
		ReviewOfSystems:    []string{},
		ActiveStage:        StageVitals,
		BookingStatus:      BookingCollecting,
	}
}

// HasChiefComplaint reports whether a non-blank chief complaint is recorded.
func (r ClinicalRecord) HasChiefComplaint() bool {
	return !isBlank(r.ChiefComplaint)
}

func (r ClinicalRecord) HasHPI() bool {
	return !isBlank(r.HPI)
}

// RecordUpdate is a partial record proposed by the generator. Nil pointers and nil
// slices mean "not supplied"; an empty JSON array decodes to a non-nil empty slice.
type RecordUpdate struct {
	ChiefComplaint           *string `json:"chiefComplaint,omitempty"`
	HPI                      *string `json:"hpi,omitempty"`
	FamilyHistory            *string `json:"familyHistory,omitempty"`
	SocialHistory            *string `json:"socialHistory,omitempty"`
	GuidelineRecommendations *string `json:"guidelineRecommendations,omitempty"`

	MedicalRecords     []string `json:"medicalRecords,omitempty"`
	Medications        []string `json:"medications,omitempty"`
	Allergies          []string `json:"allergies,omitempty"`
	PastMedicalHistory []string `json:"pastMedicalHistory,omitempty"`
	ReviewOfSystems    []string `json:"reviewOfSystems,omitempty"`

	RecordsCheckCompleted *bool `json:"recordsCheckCompleted,omitempty"`
	HistoryCheckCompleted *bool `json:"historyCheckCompleted,omitempty"`

	Vitals *VitalsUpdate `json:"vitals,omitempty"`

	ActiveStage     *Stage         `json:"activeStage,omitempty"`
	BookingStatus   *BookingStatus `json:"bookingStatus,omitempty"`
	Handover        *Handover      `json:"handover,omitempty"`
	AppointmentDate *string        `json:"appointmentDate,omitempty"`
}

type VitalsUpdate struct {
	Name           *string         `json:"name,omitempty"`
	Age            *int            `json:"age,omitempty"`
	Gender         *string         `json:"gender,omitempty"`
	Temperature    *Temperature    `json:"temperature,omitempty"`
	Weight         *Weight         `json:"weight,omitempty"`
	BloodPressure  *BloodPressure  `json:"bloodPressure,omitempty"`
	Status         *string         `json:"status,omitempty"`
	Collected      *bool           `json:"collected,omitempty"`
	StageCompleted *bool           `json:"stageCompleted,omitempty"`
	Triage         *TriageDecision `json:"triage,omitempty"`
}
