package bridge

import "strings"

// SplitContextKey decomposes "actionName:messageId". Everything before the
// first ':' is the action name; the message id is whatever follows it, and
// is empty when there is no separator or nothing after it.
func SplitContextKey(key string) (actionName, messageID string) {
	actionName, _, _ = strings.Cut(key, ":")
	if len(key) > len(actionName) {
		messageID = key[len(actionName)+1:]
	}
	return actionName, messageID
}

// JoinContextKey is the inverse of SplitContextKey for names without ':'.
func JoinContextKey(actionName, messageID string) string {
	return actionName + ":" + messageID
}
