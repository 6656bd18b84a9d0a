package irc

import "time"

// Gateway defaults.
const (
	DefaultHost = "irc.chat.twitch.tv"
	DefaultPort = 6667

	DefaultCommandPrefix    = "!"
	DefaultHandshakeTimeout = 60 * time.Second
	DefaultPacing           = 500 * time.Millisecond
	DefaultQueueSize        = 4096
)

// Lines the read loop handles before dispatch.
const (
	pingLine      = "PING :tmi.twitch.tv"
	pongLine      = "PONG :tmi.twitch.tv"
	reconnectLine = "RECONNECT :tmi.twitch.tv"
)

// Capabilities requested after login.
const (
	MembershipCapability = "twitch.tv/membership"
	CommandsCapability   = "twitch.tv/commands"
)

// Login failure notices sent by the gateway instead of the welcome numerics.
var authFailureNotices = []string{
	"Login authentication failed",
	"Improperly formatted auth",
}

// Rate windows. Twitch disconnects clients that exceed these.
// https://dev.twitch.tv/docs/irc/guide#rate-limits
const (
	membershipWindow  = 15 * time.Second
	membershipCeiling = 50

	messageWindow     = 30 * time.Second
	messageCeiling    = 20
	modMessageCeiling = 100
)

// Notice message ids carried in the msg-id tag of NOTICE lines.
const (
	NoticeSubsOn              = "subs_on"
	NoticeSubsOff             = "subs_off"
	NoticeAlreadySubsOn       = "already_subs_on"
	NoticeAlreadySubsOff      = "already_subs_off"
	NoticeSlowOn              = "slow_on"
	NoticeSlowOff             = "slow_off"
	NoticeR9KOn               = "r9k_on"
	NoticeR9KOff              = "r9k_off"
	NoticeAlreadyR9KOn        = "already_r9k_on"
	NoticeAlreadyR9KOff       = "already_r9k_off"
	NoticeHostOn              = "host_on"
	NoticeHostOff             = "host_off"
	NoticeBadHostHosting      = "bad_host_hosting"
	NoticeHostsRemaining      = "hosts_remaining"
	NoticeEmoteOnlyOn         = "emote_only_on"
	NoticeEmoteOnlyOff        = "emote_only_off"
	NoticeAlreadyEmoteOnlyOn  = "already_emote_only_on"
	NoticeAlreadyEmoteOnlyOff = "already_emote_only_off"
	NoticeMsgChannelSuspended = "msg_channel_suspended"
	NoticeTimeoutSuccess      = "timeout_success"
	NoticeBanSuccess          = "ban_success"
	NoticeUnbanSuccess        = "unban_success"
	NoticeBadUnbanNoBan       = "bad_unban_no_ban"
	NoticeAlreadyBanned       = "already_banned"
	NoticeUnrecognizedCmd     = "unrecognized_cmd"
)
