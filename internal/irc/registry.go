package irc

import "sync"

// HandlerFunc receives every event of the kind it was registered for.
type HandlerFunc func(s *Session, ev Event)

// LineFunc receives a raw line. It is used by the control hooks, which
// replace the default handling of the line entirely.
type LineFunc func(s *Session, line string)

// Handler is the override form of the callback registry: embed NopHandler
// and redefine the methods of interest, then pass the value to Session.Use.
type Handler interface {
	OnChatMessage(s *Session, ev ChatMessage)
	OnCommand(s *Session, ev Command)
	OnMembershipChange(s *Session, ev MembershipChange)
	OnModeChange(s *Session, ev ModeChange)
	OnNotice(s *Session, ev Notice)
	OnHostTarget(s *Session, ev HostTarget)
	OnChatCleared(s *Session, ev ChatCleared)
	OnUserNotice(s *Session, ev UserNotice)
	OnUserState(s *Session, ev UserState)
	OnRoomState(s *Session, ev RoomState)
	OnServerInfo(s *Session, ev ServerInfo)
	OnCapability(s *Session, ev Capability)
	OnUnknown(s *Session, ev Unknown)
}

// RawLineHandler may additionally be implemented by a Handler to take over
// dispatch of every line that is not a PING or RECONNECT.
type RawLineHandler interface {
	OnRawLine(s *Session, line string)
}

// PingHandler may additionally be implemented by a Handler to replace the
// automatic PONG reply.
type PingHandler interface {
	OnPing(s *Session, line string)
}

// ReconnectHandler may additionally be implemented by a Handler to replace
// the automatic reconnect on a gateway RECONNECT notice.
type ReconnectHandler interface {
	OnReconnect(s *Session, line string)
}

// NopHandler implements Handler with methods that do nothing.
type NopHandler struct{}

func (NopHandler) OnChatMessage(*Session, ChatMessage)           {}
func (NopHandler) OnCommand(*Session, Command)                   {}
func (NopHandler) OnMembershipChange(*Session, MembershipChange) {}
func (NopHandler) OnModeChange(*Session, ModeChange)             {}
func (NopHandler) OnNotice(*Session, Notice)                     {}
func (NopHandler) OnHostTarget(*Session, HostTarget)             {}
func (NopHandler) OnChatCleared(*Session, ChatCleared)           {}
func (NopHandler) OnUserNotice(*Session, UserNotice)             {}
func (NopHandler) OnUserState(*Session, UserState)               {}
func (NopHandler) OnRoomState(*Session, RoomState)               {}
func (NopHandler) OnServerInfo(*Session, ServerInfo)             {}
func (NopHandler) OnCapability(*Session, Capability)             {}
func (NopHandler) OnUnknown(*Session, Unknown)                   {}

// registry holds at most one handler per event kind plus the three control
// hooks. Registration may race with the read loop, hence the lock.
type registry struct {
	mu        sync.RWMutex
	handlers  [numKinds]HandlerFunc
	rawLine   LineFunc
	ping      LineFunc
	reconnect LineFunc
}

func (r *registry) set(kind EventKind, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[kind] = fn
	r.mu.Unlock()
}

func (r *registry) get(kind EventKind) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[kind]
}

func (r *registry) setHook(slot *LineFunc, fn LineFunc) {
	r.mu.Lock()
	*slot = fn
	r.mu.Unlock()
}

func (r *registry) hook(slot *LineFunc) LineFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *slot
}

// Handle registers fn for kind, replacing any previous handler.
// A nil fn removes the handler.
func (s *Session) Handle(kind EventKind, fn HandlerFunc) {
	if kind < 0 || kind >= numKinds {
		return
	}
	s.reg.set(kind, fn)
}

// Use registers every method of h, and any control hooks it implements.
func (s *Session) Use(h Handler) {
	s.OnChatMessage(h.OnChatMessage)
	s.OnCommand(h.OnCommand)
	s.OnMembershipChange(h.OnMembershipChange)
	s.OnModeChange(h.OnModeChange)
	s.OnNotice(h.OnNotice)
	s.OnHostTarget(h.OnHostTarget)
	s.OnChatCleared(h.OnChatCleared)
	s.OnUserNotice(h.OnUserNotice)
	s.OnUserState(h.OnUserState)
	s.OnRoomState(h.OnRoomState)
	s.OnServerInfo(h.OnServerInfo)
	s.OnCapability(h.OnCapability)
	s.OnUnknown(h.OnUnknown)

	if rh, ok := h.(RawLineHandler); ok {
		s.OnRawLine(rh.OnRawLine)
	}
	if ph, ok := h.(PingHandler); ok {
		s.OnPing(ph.OnPing)
	}
	if rh, ok := h.(ReconnectHandler); ok {
		s.OnReconnect(rh.OnReconnect)
	}
}

// OnRawLine replaces dispatch: every line other than PING and RECONNECT is
// handed to fn unclassified. A nil fn restores dispatch.
func (s *Session) OnRawLine(fn LineFunc) { s.reg.setHook(&s.reg.rawLine, fn) }

// OnPing replaces the automatic PONG reply. A nil fn restores it.
func (s *Session) OnPing(fn LineFunc) { s.reg.setHook(&s.reg.ping, fn) }

// OnReconnect replaces the automatic reconnect. A nil fn restores it.
func (s *Session) OnReconnect(fn LineFunc) { s.reg.setHook(&s.reg.reconnect, fn) }

func (s *Session) OnChatMessage(fn func(*Session, ChatMessage)) {
	s.Handle(KindChatMessage, typed(fn))
}

func (s *Session) OnCommand(fn func(*Session, Command)) {
	s.Handle(KindCommand, typed(fn))
}

func (s *Session) OnMembershipChange(fn func(*Session, MembershipChange)) {
	s.Handle(KindMembershipChange, typed(fn))
}

func (s *Session) OnModeChange(fn func(*Session, ModeChange)) {
	s.Handle(KindModeChange, typed(fn))
}

func (s *Session) OnNotice(fn func(*Session, Notice)) {
	s.Handle(KindNotice, typed(fn))
}

func (s *Session) OnHostTarget(fn func(*Session, HostTarget)) {
	s.Handle(KindHostTarget, typed(fn))
}

func (s *Session) OnChatCleared(fn func(*Session, ChatCleared)) {
	s.Handle(KindChatCleared, typed(fn))
}

func (s *Session) OnUserNotice(fn func(*Session, UserNotice)) {
	s.Handle(KindUserNotice, typed(fn))
}

func (s *Session) OnUserState(fn func(*Session, UserState)) {
	s.Handle(KindUserState, typed(fn))
}

func (s *Session) OnRoomState(fn func(*Session, RoomState)) {
	s.Handle(KindRoomState, typed(fn))
}

func (s *Session) OnServerInfo(fn func(*Session, ServerInfo)) {
	s.Handle(KindServerInfo, typed(fn))
}

func (s *Session) OnCapability(fn func(*Session, Capability)) {
	s.Handle(KindCapability, typed(fn))
}

func (s *Session) OnUnknown(fn func(*Session, Unknown)) {
	s.Handle(KindUnknown, typed(fn))
}

// typed adapts a handler for one concrete event type to a HandlerFunc.
func typed[E Event](fn func(*Session, E)) HandlerFunc {
	if fn == nil {
		return nil
	}
	return func(s *Session, ev Event) {
		if e, ok := ev.(E); ok {
			fn(s, e)
		}
	}
}
