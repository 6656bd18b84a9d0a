package irc

import "errors"

// Error kinds returned by the session. Callers match them with errors.Is;
// the returned errors usually wrap one of these with extra context.
var (
	// ErrInvalidArgument reports a bad credential, identity, channel list or raw command.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAuthentication reports that the gateway rejected the credentials.
	ErrAuthentication = errors.New("login authentication failed")

	// ErrProtocolTimeout reports that the handshake did not finish before the deadline.
	ErrProtocolTimeout = errors.New("unable to receive authentication response")

	// ErrNotConnected reports an outbound command attempted without a live connection.
	ErrNotConnected = errors.New("disconnected from gateway")
)
