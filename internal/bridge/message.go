package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire tags of inbound notification lines. Each line is a tag followed by
// an optional payload.
const (
	TagVariablesChanged                   = "VariablesChanged:"
	TagVariablesChangedNoDownloadsPending = "VariablesChangedAndNoDownloadsPending:"
	TagStarted                            = "Started:"
	TagVariableValueChanged               = "VariableValueChanged:"
	TagContentUpdated                     = "ForceContentUpdateWithCallback:"
	TagActionResponder                    = "ActionResponder:"
	TagOnAction                           = "OnAction:"
	TagRunActionNamed                     = "OnRunActionNamed:"
)

// Message is one parsed inbound line. The set of implementations is closed.
type Message interface {
	// Tag returns the wire tag, or "" for an unrecognized line.
	Tag() string
	// String re-encodes the message as a line.
	String() string

	message()
}

type (
	VariablesChanged                   struct{}
	VariablesChangedNoDownloadsPending struct{}

	Started struct {
		Success bool
	}

	VariableValueChanged struct {
		Name string
	}

	// ContentUpdated completes the callback registered under Token.
	ContentUpdated struct {
		Token int
	}

	// ActionResponder asks the first-responder of the context's action to
	// handle it.
	ActionResponder struct {
		Key string
	}

	// OnAction notifies the subscribers of the context's action.
	OnAction struct {
		Key string
	}

	// RunActionNamed delivers ChildKey to the named responder of ParentKey.
	RunActionNamed struct {
		ParentKey string
		ChildKey  string
	}

	// Malformed is a line with a known tag and an unusable payload.
	Malformed struct {
		MessageTag string
		Raw        string
		Err        error
	}

	// Unrecognized is a line matching no tag.
	Unrecognized struct {
		Raw string
	}
)

func (VariablesChanged) Tag() string                   { return TagVariablesChanged }
func (VariablesChangedNoDownloadsPending) Tag() string { return TagVariablesChangedNoDownloadsPending }
func (Started) Tag() string                            { return TagStarted }
func (VariableValueChanged) Tag() string               { return TagVariableValueChanged }
func (ContentUpdated) Tag() string                     { return TagContentUpdated }
func (ActionResponder) Tag() string                    { return TagActionResponder }
func (OnAction) Tag() string                           { return TagOnAction }
func (RunActionNamed) Tag() string                     { return TagRunActionNamed }
func (m Malformed) Tag() string                        { return m.MessageTag }
func (Unrecognized) Tag() string                       { return "" }

func (m VariablesChanged) String() string                   { return m.Tag() }
func (m VariablesChangedNoDownloadsPending) String() string { return m.Tag() }
func (m Started) String() string                            { return m.Tag() + strconv.FormatBool(m.Success) }
func (m VariableValueChanged) String() string               { return m.Tag() + m.Name }
func (m ContentUpdated) String() string                     { return m.Tag() + strconv.Itoa(m.Token) }
func (m ActionResponder) String() string                    { return m.Tag() + m.Key }
func (m OnAction) String() string                           { return m.Tag() + m.Key }
func (m RunActionNamed) String() string                     { return m.Tag() + m.ParentKey + "|" + m.ChildKey }
func (m Malformed) String() string                          { return m.Raw }
func (m Unrecognized) String() string                       { return m.Raw }

func (VariablesChanged) message()                   {}
func (VariablesChangedNoDownloadsPending) message() {}
func (Started) message()                            {}
func (VariableValueChanged) message()               {}
func (ContentUpdated) message()                     {}
func (ActionResponder) message()                    {}
func (OnAction) message()                           {}
func (RunActionNamed) message()                     {}
func (Malformed) message()                          {}
func (Unrecognized) message()                       {}

// messageParsers is checked in order and the first tag that prefixes the
// line wins. The order is part of the protocol.
var messageParsers = [...]struct {
	tag   string
	parse func(payload, line string) Message
}{
	{TagVariablesChanged, func(string, string) Message { return VariablesChanged{} }},
	{TagVariablesChangedNoDownloadsPending, func(string, string) Message { return VariablesChangedNoDownloadsPending{} }},
	{TagStarted, parseStarted},
	{TagVariableValueChanged, func(p, _ string) Message { return VariableValueChanged{Name: p} }},
	{TagContentUpdated, parseContentUpdated},
	{TagActionResponder, func(p, _ string) Message { return ActionResponder{Key: p} }},
	{TagOnAction, func(p, _ string) Message { return OnAction{Key: p} }},
	{TagRunActionNamed, parseRunActionNamed},
}

// ParseMessage classifies an inbound line. It never fails: unusable input is
// returned as Malformed or Unrecognized.
func ParseMessage(line string) Message {
	for _, p := range messageParsers {
		if payload, ok := strings.CutPrefix(line, p.tag); ok {
			return p.parse(payload, line)
		}
	}
	return Unrecognized{Raw: line}
}

// Android reports "True"/"true", iOS reports "1".
func parseStarted(_, line string) Message {
	lower := strings.ToLower(line)
	return Started{Success: strings.HasSuffix(lower, "true") || strings.HasSuffix(lower, "1")}
}

func parseContentUpdated(payload, line string) Message {
	token, err := strconv.Atoi(payload)
	if err != nil {
		return Malformed{MessageTag: TagContentUpdated, Raw: line, Err: fmt.Errorf("callback token: %w", err)}
	}
	return ContentUpdated{Token: token}
}

func parseRunActionNamed(payload, line string) Message {
	parts := strings.FieldsFunc(payload, func(r rune) bool { return r == '|' })
	if len(parts) != 2 {
		return Malformed{
			MessageTag: TagRunActionNamed,
			Raw:        line,
			Err:        fmt.Errorf("expected parent|child, got %d segments", len(parts)),
		}
	}
	return RunActionNamed{ParentKey: parts[0], ChildKey: parts[1]}
}
