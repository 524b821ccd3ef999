// Package chat implements the conversation core: the canonical channel-key
// convention, the closed set of realtime events, the Gate/Store/Bus ports,
// and the per-conversation Session controller that ties them together.
package chat

// ChannelKey derives the canonical, order-independent channel name for a
// two-party conversation. Both participants must arrive at the identical
// name regardless of who initiated, so the two ids are sorted before being
// joined. Publisher and every subscriber share this single function; a
// mismatch would silently split a conversation into two channels that never
// see each other.
func ChannelKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return "chat:" + userA + ":" + userB
}
