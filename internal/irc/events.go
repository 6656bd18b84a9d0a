package irc

// EventKind identifies the variant of an inbound Event.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindChatMessage
	KindCommand
	KindMembershipChange
	KindModeChange
	KindNotice
	KindHostTarget
	KindChatCleared
	KindUserNotice
	KindUserState
	KindRoomState
	KindServerInfo
	KindCapability

	numKinds
)

var kindNames = [numKinds]string{
	KindUnknown:          "unknown",
	KindChatMessage:      "chat_message",
	KindCommand:          "command",
	KindMembershipChange: "membership_change",
	KindModeChange:       "mode_change",
	KindNotice:           "notice",
	KindHostTarget:       "host_target",
	KindChatCleared:      "chat_cleared",
	KindUserNotice:       "user_notice",
	KindUserState:        "user_state",
	KindRoomState:        "room_state",
	KindServerInfo:       "server_info",
	KindCapability:       "capability",
}

func (k EventKind) String() string {
	if k < 0 || k >= numKinds {
		return "invalid"
	}
	return kindNames[k]
}

// Event is a classified inbound line. Events are plain values and are
// never modified after classification.
type Event interface {
	Kind() EventKind
}

// ChatMessage is a plain chat line sent by a viewer.
type ChatMessage struct {
	Channel string
	Viewer  string
	Text    string
}

// Command is a chat line starting with the session's command prefix.
// Value is empty when nothing followed the command name.
type Command struct {
	Channel string
	Viewer  string
	Name    string
	Value   string
}

// HasValue reports whether the command carried an argument.
func (c Command) HasValue() bool { return c.Value != "" }

// MembershipChange reports a viewer joining or leaving a channel.
type MembershipChange struct {
	Channel string
	Viewer  string
	Joined  bool
}

// ModeChange reports a viewer gaining (+o) or losing (-o) moderator status.
type ModeChange struct {
	Channel string
	Viewer  string
	Granted bool
}

// Notice is a channel notice. ID is the msg-id tag, see the Notice* constants.
type Notice struct {
	Channel string
	ID      string
	Text    string
}

// HostTarget reports a channel starting or stopping to host another.
// TargetChannel is empty when hosting stopped.
type HostTarget struct {
	HostingChannel string
	TargetChannel  string
	Viewers        int
}

// Stopped reports whether this is a host stop notification.
func (h HostTarget) Stopped() bool { return h.TargetChannel == "" }

// ChatCleared reports a chat purge. Viewer is empty when the whole channel was cleared.
type ChatCleared struct {
	Channel string
	Viewer  string
}

// WholeChannel reports whether the clear applied to every viewer.
func (c ChatCleared) WholeChannel() bool { return c.Viewer == "" }

// UserNotice carries re-subscription and similar user notices.
type UserNotice struct {
	Channel string
	Text    string
}

// UserState is sent after joining a channel or sending a message.
type UserState struct {
	Channel string
}

// RoomState is sent after joining a channel or when its settings change.
type RoomState struct {
	Channel string
}

// ServerInfo is a numeric reply addressed to the session's identity
// (NAMES lists and the like). Text is everything after the identity.
type ServerInfo struct {
	Text string
}

// Capability is the gateway's answer to a CAP REQ.
type Capability struct {
	Ack          bool
	Capabilities string
}

// Unknown is a line no rule matched.
type Unknown struct {
	Raw string
}

func (ChatMessage) Kind() EventKind      { return KindChatMessage }
func (Command) Kind() EventKind          { return KindCommand }
func (MembershipChange) Kind() EventKind { return KindMembershipChange }
func (ModeChange) Kind() EventKind       { return KindModeChange }
func (Notice) Kind() EventKind           { return KindNotice }
func (HostTarget) Kind() EventKind       { return KindHostTarget }
func (ChatCleared) Kind() EventKind      { return KindChatCleared }
func (UserNotice) Kind() EventKind       { return KindUserNotice }
func (UserState) Kind() EventKind        { return KindUserState }
func (RoomState) Kind() EventKind        { return KindRoomState }
func (ServerInfo) Kind() EventKind       { return KindServerInfo }
func (Capability) Kind() EventKind       { return KindCapability }
func (Unknown) Kind() EventKind          { return KindUnknown }
