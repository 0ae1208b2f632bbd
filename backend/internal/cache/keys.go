package cache

import "fmt"

// 键语义：
// - roomKey(room):   房间在线成员（ZSet<userId, expireAtUnix>，score=expireAt）
// - namesKey(room):  房间内 userId -> username 映射（Hash）
// - cursorKey(...):  某成员最近一次上报的光标（String，带 TTL）
// room 即网关的房间名 collab-{reportID}-{field}

const (
	keyRoomFmt   = "collab:presence:{room:%s}"
	keyNamesFmt  = "collab:presence:names:{room:%s}"
	keyCursorFmt = "collab:cursor:%s:%d"
)

func roomKey(room string) string  { return fmt.Sprintf(keyRoomFmt, room) }
func namesKey(room string) string { return fmt.Sprintf(keyNamesFmt, room) }

func cursorKey(room string, userID uint64) string {
	return fmt.Sprintf(keyCursorFmt, room, userID)
}
