package mic

// Role identifies which of the three message kinds a Message is.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the closed sum type over SystemMessage, UserMessage and
// AssistantMessage. The role-scoped constructors below are the only
// supported way to build one; they enforce which ContentPart kinds are
// legal for each role (spec §3).
type Message interface {
	Role() Role
	isMessage()
}

// SystemMessage carries only text, per the content-model invariant that
// system messages never hold media or tool content.
type SystemMessage struct {
	Text string
}

func (SystemMessage) Role() Role { return RoleSystem }
func (SystemMessage) isMessage() {}

// System builds a SystemMessage.
func System(text string) SystemMessage {
	return SystemMessage{Text: text}
}

// UserPart is the subset of ContentPart legal in a user message: text,
// image, audio, document, or tool_output.
type UserPart interface {
	ContentPart
	isUserPart()
}

func (TextPart) isUserPart()       {}
func (ImagePart) isUserPart()      {}
func (AudioPart) isUserPart()      {}
func (DocumentPart) isUserPart()   {}
func (ToolOutputPart) isUserPart() {}

// UserMessage holds user-authored content: any mix of text, media and
// tool outputs, plus an optional display Name.
type UserMessage struct {
	Content []UserPart
	Name    string
}

func (UserMessage) Role() Role { return RoleUser }
func (UserMessage) isMessage() {}

// User builds a UserMessage from one or more user parts. It takes only
// UserPart values; use UserText for a plain string.
func User(parts ...UserPart) UserMessage {
	return UserMessage{Content: parts}
}

// UserText is a convenience constructor for a text-only user message.
func UserText(text string) UserMessage {
	return UserMessage{Content: []UserPart{TextPart{Text: text}}}
}

// AssistantPart is the subset of ContentPart legal in an assistant
// message: text, thought, or tool_call.
type AssistantPart interface {
	ContentPart
	isAssistantPart()
}

func (TextPart) isAssistantPart()     {}
func (ThoughtPart) isAssistantPart()  {}
func (ToolCallPart) isAssistantPart() {}

// AssistantMessage holds model-generated content. ProviderID and
// ProviderModelName identify which provider/model produced RawMessage, the
// provider-serialized payload reused verbatim by resume() when the
// resuming model matches (spec §4.3, §4.5); otherwise the message is
// re-encoded from Content.
type AssistantMessage struct {
	Content           []AssistantPart
	ProviderID        string
	ModelID           ModelID
	ProviderModelName string
	RawMessage        []byte
	Name              string
}

func (AssistantMessage) Role() Role { return RoleAssistant }
func (AssistantMessage) isMessage() {}

// Text concatenates the message's text parts, in order.
func (m AssistantMessage) Text() string {
	var out string
	for _, p := range m.Content {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// Thoughts returns the message's thought parts, in order.
func (m AssistantMessage) Thoughts() []ThoughtPart {
	var out []ThoughtPart
	for _, p := range m.Content {
		if t, ok := p.(ThoughtPart); ok {
			out = append(out, t)
		}
	}
	return out
}

// ToolCalls returns the message's tool_call parts, in order.
func (m AssistantMessage) ToolCalls() []ToolCallPart {
	var out []ToolCallPart
	for _, p := range m.Content {
		if t, ok := p.(ToolCallPart); ok {
			out = append(out, t)
		}
	}
	return out
}

// reusableRawMessage implements the encode decision rule of spec §4.3:
// an assistant's RawMessage is reused verbatim iff the provider id and
// model name match and the caller did not request thought-as-text
// re-encoding.
func (m AssistantMessage) reusableRawMessage(providerID, providerModelName string, encodeThoughtsAsText bool) bool {
	return len(m.RawMessage) > 0 &&
		m.ProviderID == providerID &&
		m.ProviderModelName == providerModelName &&
		!encodeThoughtsAsText
}

// ReusableRawMessage exposes reusableRawMessage to the provider adapter
// packages, which apply the same rule when encoding assistant turns.
func (m AssistantMessage) ReusableRawMessage(providerID, providerModelName string, encodeThoughtsAsText bool) bool {
	return m.reusableRawMessage(providerID, providerModelName, encodeThoughtsAsText)
}
