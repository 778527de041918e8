package cache

import "fmt"

// Key layout:
// - roomKey(docID):   online members (ZSet<userId, expireAtUnix>, score=expireAt)
// - namesKey(docID):  userId -> username map for the room (Hash)
// - cursorKey(...):   last reported cursor per user (String, JSON payload)

const (
	keyRoomFmt   = "presence:room:{docID:%s}"
	keyNamesFmt  = "presence:room:names:{docID:%s}"
	keyCursorFmt = "presence:cursor:%s:%d"
)

func roomKey(docID string) string  { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string { return fmt.Sprintf(keyNamesFmt, docID) }

func cursorKey(docID string, userID uint64) string {
	return fmt.Sprintf(keyCursorFmt, docID, userID)
}
