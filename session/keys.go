package session

import "strings"

const (
	sessionKeyPrefix = "session:"
	accessKeyPrefix  = "session:token:"
	refreshKeyPrefix = "session:refresh:"
	userKeyPrefix    = "user_sessions:"
)

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func accessKey(hashHex string) string {
	return accessKeyPrefix + hashHex
}

func refreshKey(hashHex string) string {
	return refreshKeyPrefix + hashHex
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

// validSessionID rejects ids that would alias an index key.
func validSessionID(sessionID string) bool {
	return sessionID != "" && !strings.ContainsRune(sessionID, ':')
}

// sessionIDFromKey extracts the id from a primary-record key, rejecting the
// token and refresh index keys that share the "session:" prefix.
func sessionIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, sessionKeyPrefix) {
		return "", false
	}
	id := key[len(sessionKeyPrefix):]
	if !validSessionID(id) {
		return "", false
	}
	return id, true
}

func userIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, userKeyPrefix) {
		return "", false
	}
	id := key[len(userKeyPrefix):]
	return id, id != ""
}
