package irc

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		prefix string
		want   Event
	}{
		{
			name:   "chat message",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :hello there",
			prefix: "!",
			want:   ChatMessage{Channel: "channel", Viewer: "viewer", Text: "hello there"},
		},
		{
			name:   "command with value",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :!so somebody else",
			prefix: "!",
			want:   Command{Channel: "channel", Viewer: "viewer", Name: "so", Value: "somebody else"},
		},
		{
			name:   "command without value",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :!uptime",
			prefix: "!",
			want:   Command{Channel: "channel", Viewer: "viewer", Name: "uptime"},
		},
		{
			name:   "custom prefix",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :#test value",
			prefix: "#",
			want:   Command{Channel: "channel", Viewer: "viewer", Name: "test", Value: "value"},
		},
		{
			name:   "default prefix is chat under custom prefix",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :!test value",
			prefix: "#",
			want:   ChatMessage{Channel: "channel", Viewer: "viewer", Text: "!test value"},
		},
		{
			name:   "regex metacharacter prefix",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :.test",
			prefix: ".",
			want:   Command{Channel: "channel", Viewer: "viewer", Name: "test"},
		},
		{
			name:   "metacharacter prefix is literal",
			line:   ":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #channel :xtest",
			prefix: ".",
			want:   ChatMessage{Channel: "channel", Viewer: "viewer", Text: "xtest"},
		},
		{
			name: "join",
			line: ":viewer!viewer@viewer.tmi.twitch.tv JOIN #channel",
			want: MembershipChange{Channel: "channel", Viewer: "viewer", Joined: true},
		},
		{
			name: "part",
			line: ":viewer!viewer@viewer.tmi.twitch.tv PART #channel",
			want: MembershipChange{Channel: "channel", Viewer: "viewer", Joined: false},
		},
		{
			name: "mode granted",
			line: ":jtv MODE #channel +o viewer",
			want: ModeChange{Channel: "channel", Viewer: "viewer", Granted: true},
		},
		{
			name: "mode revoked",
			line: ":jtv MODE #channel -o viewer",
			want: ModeChange{Channel: "channel", Viewer: "viewer", Granted: false},
		},
		{
			name: "notice",
			line: "@msg-id=slow_on :tmi.twitch.tv NOTICE #channel :This room is now in slow mode.",
			want: Notice{Channel: "channel", ID: NoticeSlowOn, Text: "This room is now in slow mode."},
		},
		{
			name: "host target",
			line: ":tmi.twitch.tv HOSTTARGET #hosting :target 8675309",
			want: HostTarget{HostingChannel: "hosting", TargetChannel: "target", Viewers: 8675309},
		},
		{
			name: "host target stop",
			line: ":tmi.twitch.tv HOSTTARGET #hosting :- 9001",
			want: HostTarget{HostingChannel: "hosting", Viewers: 9001},
		},
		{
			name: "clear chat for viewer",
			line: ":tmi.twitch.tv CLEARCHAT #channel :viewer",
			want: ChatCleared{Channel: "channel", Viewer: "viewer"},
		},
		{
			name: "clear whole chat",
			line: ":tmi.twitch.tv CLEARCHAT #channel",
			want: ChatCleared{Channel: "channel"},
		},
		{
			name: "user notice",
			line: ":tmi.twitch.tv USERNOTICE #channel :Great stream!",
			want: UserNotice{Channel: "channel", Text: "Great stream!"},
		},
		{
			name: "user state",
			line: ":tmi.twitch.tv USERSTATE #channel",
			want: UserState{Channel: "channel"},
		},
		{
			name: "room state",
			line: ":tmi.twitch.tv ROOMSTATE #channel",
			want: RoomState{Channel: "channel"},
		},
		{
			name: "server info",
			line: ":testuser.tmi.twitch.tv 353 testuser = #channel :testuser viewer",
			want: ServerInfo{Text: "= #channel :testuser viewer"},
		},
		{
			name: "capability ack",
			line: ":tmi.twitch.tv CAP * ACK :twitch.tv/membership",
			want: Capability{Ack: true, Capabilities: MembershipCapability},
		},
		{
			name: "mismatched source names",
			line: ":viewer!other@viewer.tmi.twitch.tv PRIVMSG #channel :hello",
			want: Unknown{Raw: ":viewer!other@viewer.tmi.twitch.tv PRIVMSG #channel :hello"},
		},
		{
			name: "welcome numeric",
			line: ":tmi.twitch.tv 001 testuser :Welcome, GLHF!",
			want: Unknown{Raw: ":tmi.twitch.tv 001 testuser :Welcome, GLHF!"},
		},
		{
			name: "empty line",
			line: "",
			want: Unknown{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := tt.prefix
			if prefix == "" {
				prefix = DefaultCommandPrefix
			}
			got := Classify(tt.line, prefix, "testuser")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifyServerInfoNeedsIdentity(t *testing.T) {
	line := ":someoneelse.tmi.twitch.tv 353 someoneelse = #channel :someoneelse"
	if ev := Classify(line, "!", "testuser"); ev.Kind() != KindUnknown {
		t.Errorf("got %s, want unknown", ev.Kind())
	}
}

func TestRulesSortedByName(t *testing.T) {
	for i := 1; i < len(rules); i++ {
		if rules[i-1].name >= rules[i].name {
			t.Fatalf("rule %q sorts before %q", rules[i-1].name, rules[i].name)
		}
	}
}

func TestEventHelpers(t *testing.T) {
	if (Command{Name: "uptime"}).HasValue() {
		t.Error("command without value reports a value")
	}
	if !(HostTarget{HostingChannel: "a", Viewers: 3}).Stopped() {
		t.Error("host target without target should be stopped")
	}
	if (ChatCleared{Channel: "a", Viewer: "b"}).WholeChannel() {
		t.Error("clear for a viewer reported as whole channel")
	}
	if got := KindCommand.String(); got != "command" {
		t.Errorf("KindCommand.String() = %q", got)
	}
	if got := EventKind(99).String(); got != "invalid" {
		t.Errorf("EventKind(99).String() = %q", got)
	}
}
