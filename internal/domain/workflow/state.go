package workflow

// State is a stage of one document-processing invocation
type State string

const (
	StateAuthenticating          State = "AUTHENTICATING"
	StateFetchingRecord          State = "FETCHING_RECORD"
	StateResolvingField          State = "RESOLVING_FIELD"
	StateExtractingFields        State = "EXTRACTING_FIELDS"
	StateTransferringAttachments State = "TRANSFERRING_ATTACHMENTS"
	StateSubmittingApproval      State = "SUBMITTING_APPROVAL"
	StateSucceeded               State = "SUCCEEDED"
	StateFailed                  State = "FAILED"
)

var validStates = map[State]bool{
	StateAuthenticating:          true,
	StateFetchingRecord:          true,
	StateResolvingField:          true,
	StateExtractingFields:        true,
	StateTransferringAttachments: true,
	StateSubmittingApproval:      true,
	StateSucceeded:               true,
	StateFailed:                  true,
}

var terminalStates = map[State]bool{
	StateSucceeded: true,
	StateFailed:    true,
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known stage
func (s State) IsValid() bool {
	return validStates[s]
}

// Trigger marks the completion of a stage
type Trigger string

const (
	TriggerAuthenticated          Trigger = "AUTHENTICATED"
	TriggerRecordFetched          Trigger = "RECORD_FETCHED"
	TriggerFieldResolved          Trigger = "FIELD_RESOLVED"
	TriggerFieldsExtracted        Trigger = "FIELDS_EXTRACTED"
	TriggerAttachmentsTransferred Trigger = "ATTACHMENTS_TRANSFERRED"
	TriggerApprovalSubmitted      Trigger = "APPROVAL_SUBMITTED"
	TriggerFail                   Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
