package models

// Status is the review state of a registration.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known review states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Document field names as written by the registration form.
const (
	FieldFirstName       = "firstName"
	FieldLastName        = "lastName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldCountry         = "country"
	FieldDietary         = "dietary"
	FieldStatus          = "status"
	FieldRejectionReason = "rejectionReason"
	FieldUpdatedAt       = "updatedAt"
)

// RawRecord is a registration document exactly as read from the store.
type RawRecord struct {
	ID   string
	Data map[string]any
}

// Registration is a registration with defaulted fields and a normalized timestamp.
// SubmissionTime is epoch milliseconds; 0 means no usable timestamp was found.
type Registration struct {
	ID              string  `json:"id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Country         string  `json:"country"`
	Dietary         string  `json:"dietary"`
	Status          Status  `json:"status"`
	SubmissionTime  int64   `json:"submission_time"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
}

// IdentityKey is the value duplicate submissions are grouped by.
func (r Registration) IdentityKey() string {
	return r.Email
}

// CanonicalRecord is the newest registration for an identity key with its superseded submissions.
type CanonicalRecord struct {
	Registration
	HasDuplicates bool           `json:"has_duplicates"`
	History       []Registration `json:"history"`
}
