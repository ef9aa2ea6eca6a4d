package events

type EventType string

const (
	EventTypePlanUpdated         EventType = "PLAN_UPDATED"
	EventTypeMedicationRemoved   EventType = "MEDICATION_REMOVED"
	EventTypeDoseConfirmed       EventType = "DOSE_CONFIRMED"
	EventTypeDoseConfirmRejected EventType = "DOSE_CONFIRM_REJECTED"
	EventTypeDoseSnoozed         EventType = "DOSE_SNOOZED"
	EventTypeDoseEscalated       EventType = "DOSE_ESCALATED"
	EventTypeDoseClosedMissed    EventType = "DOSE_CLOSED_MISSED"
	EventTypeStockRestocked      EventType = "STOCK_RESTOCKED"
	EventTypeVitalRecorded       EventType = "VITAL_RECORDED"
	EventTypeAlertAcknowledged   EventType = "ALERT_ACKNOWLEDGED"
)

type ActorType string

const (
	ActorTypePatientUser   ActorType = "PATIENT_USER"
	ActorTypeCaregiverUser ActorType = "CAREGIVER_USER"
	ActorTypeSystem        ActorType = "SYSTEM"
)

type Source string

const (
	SourceAPI    Source = "api"
	SourceAgent  Source = "agent"
	SourceImport Source = "import"
)

// SystemActor es el actor del agent loop.
var SystemActor = Actor{Type: ActorTypeSystem, ID: "adherence-agent"}
