package irc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Placeholders substituted into rule patterns at dispatch time.
const (
	prefixPlaceholder   = "{prefix}"
	identityPlaceholder = "{identity}"
)

// A rule classifies one kind of gateway line. Patterns containing a
// placeholder are expanded per call; the rest are compiled once.
type rule struct {
	name    string
	pattern string
	re      *regexp.Regexp
	extract func(m submatch) (Event, bool)
}

// rules is evaluated in name order. "command" sorts before "message",
// which matters because the message pattern also matches command lines.
var rules = buildRules([]rule{
	{
		name:    "capability",
		pattern: `^:tmi\.twitch\.tv\s+CAP\s+\*\s+(ACK|NAK)\s+:(.*)$`,
		extract: func(m submatch) (Event, bool) {
			return Capability{Ack: m.group(1) == "ACK", Capabilities: m.group(2)}, true
		},
	},
	{
		name:    "clearchat",
		pattern: `^:tmi\.twitch\.tv\s+CLEARCHAT\s+#(\w+)(\s+:(\w+))?$`,
		extract: func(m submatch) (Event, bool) {
			ev := ChatCleared{Channel: m.group(1)}
			if m.participated(2) {
				ev.Viewer = m.group(3)
			}
			return ev, true
		},
	},
	{
		name:    "command",
		pattern: `^:(\w+)!(\w+)@(\w+)\.tmi\.twitch\.tv PRIVMSG #(\w+) :` + prefixPlaceholder + `(\w*)\s?(.*)$`,
		extract: func(m submatch) (Event, bool) {
			if !m.sameUser() {
				return nil, false
			}
			return Command{
				Channel: m.group(4),
				Viewer:  m.group(1),
				Name:    m.group(5),
				Value:   m.group(6),
			}, true
		},
	},
	{
		name:    "hosttarget",
		pattern: `^:tmi\.twitch\.tv\s+HOSTTARGET\s+#(\w+)\s+:(\w+)\s+(\d+)$`,
		extract: func(m submatch) (Event, bool) {
			n, err := strconv.Atoi(m.group(3))
			if err != nil {
				return nil, false
			}
			return HostTarget{HostingChannel: m.group(1), TargetChannel: m.group(2), Viewers: n}, true
		},
	},
	{
		name:    "hosttargetstop",
		pattern: `^:tmi\.twitch\.tv\s+HOSTTARGET\s+#(\w+)\s+:-\s+(\d+)$`,
		extract: func(m submatch) (Event, bool) {
			n, err := strconv.Atoi(m.group(2))
			if err != nil {
				return nil, false
			}
			return HostTarget{HostingChannel: m.group(1), Viewers: n}, true
		},
	},
	{
		name:    "ircinfo",
		pattern: `^:` + identityPlaceholder + `\.tmi\.twitch\.tv\s+\d+\s+` + identityPlaceholder + `\s+(.*)`,
		extract: func(m submatch) (Event, bool) {
			return ServerInfo{Text: m.group(1)}, true
		},
	},
	{
		name:    "join",
		pattern: `^:(\w+)!(\w+)@(\w+)\.tmi\.twitch\.tv JOIN #(\w+)$`,
		extract: func(m submatch) (Event, bool) {
			if !m.sameUser() {
				return nil, false
			}
			return MembershipChange{Channel: m.group(4), Viewer: m.group(1), Joined: true}, true
		},
	},
	{
		name:    "message",
		pattern: `^:(\w+)!(\w+)@(\w+)\.tmi\.twitch\.tv\s+PRIVMSG\s+#(\w+)\s+:(.*)$`,
		extract: func(m submatch) (Event, bool) {
			if !m.sameUser() {
				return nil, false
			}
			return ChatMessage{Channel: m.group(4), Viewer: m.group(1), Text: m.group(5)}, true
		},
	},
	{
		name:    "mode",
		pattern: `^:jtv\s+MODE\s+#(\w+)\s+(-|\+)o\s+(.*)$`,
		extract: func(m submatch) (Event, bool) {
			return ModeChange{Channel: m.group(1), Viewer: m.group(3), Granted: m.group(2) == "+"}, true
		},
	},
	{
		name:    "notice",
		pattern: `^@msg-id=(\w*)\s+:tmi\.twitch\.tv\s+NOTICE\s+#(\w+)\s+:(.*)$`,
		extract: func(m submatch) (Event, bool) {
			return Notice{Channel: m.group(2), ID: m.group(1), Text: m.group(3)}, true
		},
	},
	{
		name:    "part",
		pattern: `^:(\w+)!(\w+)@(\w+)\.tmi\.twitch\.tv PART #(\w+)$`,
		extract: func(m submatch) (Event, bool) {
			if !m.sameUser() {
				return nil, false
			}
			return MembershipChange{Channel: m.group(4), Viewer: m.group(1), Joined: false}, true
		},
	},
	{
		name:    "roomstate",
		pattern: `^:tmi\.twitch\.tv\s+ROOMSTATE\s+#(\w+)$`,
		extract: func(m submatch) (Event, bool) {
			return RoomState{Channel: m.group(1)}, true
		},
	},
	{
		name:    "usernotice",
		pattern: `^:tmi\.twitch\.tv\s+USERNOTICE\s+#(\w+)\s+:(.*)$`,
		extract: func(m submatch) (Event, bool) {
			return UserNotice{Channel: m.group(1), Text: m.group(2)}, true
		},
	},
	{
		name:    "userstate",
		pattern: `^:tmi\.twitch\.tv\s+USERSTATE\s+#(\w+)$`,
		extract: func(m submatch) (Event, bool) {
			return UserState{Channel: m.group(1)}, true
		},
	},
})

func buildRules(rs []rule) []rule {
	sort.Slice(rs, func(i, j int) bool { return rs[i].name < rs[j].name })
	for i := range rs {
		if !strings.Contains(rs[i].pattern, "{") {
			rs[i].re = regexp.MustCompile(rs[i].pattern)
		}
	}
	return rs
}

// expanded caches compiled patterns by their expanded text, so a prefix
// change takes effect on the next line without recompiling every time.
var expanded sync.Map

func (r *rule) regexp(prefix, identity string) (*regexp.Regexp, error) {
	if r.re != nil {
		return r.re, nil
	}
	p := strings.ReplaceAll(r.pattern, prefixPlaceholder, regexp.QuoteMeta(prefix))
	p = strings.ReplaceAll(p, identityPlaceholder, regexp.QuoteMeta(identity))
	if re, ok := expanded.Load(p); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	expanded.Store(p, re)
	return re, nil
}

// Classify matches line against the rule table and returns the event of the
// first rule that matches. prefix is the command prefix and identity the
// lower-cased login name; both are substituted into the patterns that need
// them. A line no rule accepts yields Unknown.
func Classify(line, prefix, identity string) Event {
	for i := range rules {
		r := &rules[i]
		re, err := r.regexp(prefix, identity)
		if err != nil {
			continue
		}
		idx := re.FindStringSubmatchIndex(line)
		if idx == nil {
			continue
		}
		if ev, ok := r.extract(submatch{line: line, idx: idx}); ok {
			return ev
		}
	}
	return Unknown{Raw: line}
}

// submatch wraps the index form of a match so extractors can tell an
// empty group from one that did not participate.
type submatch struct {
	line string
	idx  []int
}

func (m submatch) participated(i int) bool {
	return 2*i+1 < len(m.idx) && m.idx[2*i] >= 0
}

func (m submatch) group(i int) string {
	if !m.participated(i) {
		return ""
	}
	return m.line[m.idx[2*i]:m.idx[2*i+1]]
}

// sameUser checks the nick!user@user.tmi.twitch.tv source form, where all
// three names are equal.
func (m submatch) sameUser() bool {
	return m.group(1) == m.group(2) && m.group(2) == m.group(3)
}
