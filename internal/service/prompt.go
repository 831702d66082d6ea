package service

// Choice is one selectable option attached to a prompt. Action is the
// opaque token the chat transport sends back when the option is picked.
type Choice struct {
	Label  string
	Action string
}

// Prompt is what a form step wants said to the user next. The transport
// layer renders Choices as inline buttons.
type Prompt struct {
	Text    string
	Choices []Choice
}
