package domain

// Flow tags which conversational state machine owns the session right now.
// Routing switches on the flow before looking at the step, so a stray
// free-text event can never be fed to the wrong flow.
type Flow string

const (
	FlowIdle         Flow = "IDLE"
	FlowRegistration Flow = "REGISTRATION"
	FlowIntake       Flow = "INTAKE"
	FlowDialogue     Flow = "DIALOGUE"
)

// Step is a position inside a registration or intake flow.
type Step string

const (
	StepRegName   Step = "REG_NAME"
	StepRegPhone  Step = "REG_PHONE"
	StepRegOrg    Step = "REG_ORG"
	StepRegOffice Step = "REG_OFFICE"

	StepIntakeCategory    Step = "INTAKE_CATEGORY"
	StepIntakeDescription Step = "INTAKE_DESCRIPTION"
	StepIntakeUrgency     Step = "INTAKE_URGENCY"
	StepIntakeSchedule    Step = "INTAKE_SCHEDULE"
)

// DialogueLink is the cross-reference written symmetrically into both
// participants' sessions while a clarification is open. AnchorMessageID is
// the message whose controls get stripped when the dialogue is torn down;
// it is only meaningful on the non-initiating side.
type DialogueLink struct {
	RequestID       int64 `json:"request_id"`
	CounterpartID   int64 `json:"counterpart_id"`
	AnchorMessageID int64 `json:"anchor_message_id,omitempty"`
}

// Session is the ephemeral per-identity conversational state. Exactly one
// exists per identity; it is overwritten on every stage transition and
// cleared when a flow completes. Stored durably so in-flight dialogues
// survive restarts.
type Session struct {
	ChatID int64             `json:"chat_id"`
	Flow   Flow              `json:"flow"`
	Step   Step              `json:"step,omitempty"`
	Form   map[string]string `json:"form,omitempty"`
	Link   *DialogueLink     `json:"link,omitempty"`
}

// NewIdleSession returns a fresh session with no active flow.
func NewIdleSession(chatID int64) *Session {
	return &Session{ChatID: chatID, Flow: FlowIdle}
}

// SetForm stores a scratch value, allocating the map on first use.
func (s *Session) SetForm(key, value string) {
	if s.Form == nil {
		s.Form = make(map[string]string)
	}
	s.Form[key] = value
}

// InDialogue reports whether the session holds a live cross-reference.
func (s *Session) InDialogue() bool {
	return s.Flow == FlowDialogue && s.Link != nil
}

// LinkedTo reports whether the session's cross-reference points at the
// given request. Used for the check-before-clear on teardown.
func (s *Session) LinkedTo(requestID int64) bool {
	return s.InDialogue() && s.Link.RequestID == requestID
}
