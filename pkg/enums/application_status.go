package enums

// ApplicationStatus tracks where an application sits in the admissions flow.
type ApplicationStatus string

const (
	ApplicationStatusDraft       ApplicationStatus = "draft"
	ApplicationStatusSubmitted   ApplicationStatus = "submitted"
	ApplicationStatusPaid        ApplicationStatus = "paid"
	ApplicationStatusUnderReview ApplicationStatus = "under_review"
	ApplicationStatusAccepted    ApplicationStatus = "accepted"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
)

var applicationStatuses = set[ApplicationStatus]{
	ApplicationStatusDraft,
	ApplicationStatusSubmitted,
	ApplicationStatusPaid,
	ApplicationStatusUnderReview,
	ApplicationStatusAccepted,
	ApplicationStatusRejected,
}

// applicationTransitions is the intended path. Writes only consult it when
// transition enforcement is switched on.
var applicationTransitions = map[ApplicationStatus]set[ApplicationStatus]{
	ApplicationStatusDraft:       {ApplicationStatusSubmitted},
	ApplicationStatusSubmitted:   {ApplicationStatusPaid},
	ApplicationStatusPaid:        {ApplicationStatusUnderReview},
	ApplicationStatusUnderReview: {ApplicationStatusAccepted, ApplicationStatusRejected},
}

func (s ApplicationStatus) String() string { return string(s) }

func (s ApplicationStatus) IsValid() bool { return applicationStatuses.has(s) }

// IsTerminal reports whether no further transition is expected.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusAccepted || s == ApplicationStatusRejected
}

// CanTransitionTo reports whether next follows s on the intended path.
// Staying put is allowed so a repeated submit is not an error.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return s == next || applicationTransitions[s].has(next)
}

func ParseApplicationStatus(value string) (ApplicationStatus, error) {
	return applicationStatuses.parse("application status", value)
}
