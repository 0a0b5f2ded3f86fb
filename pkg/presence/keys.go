package presence

import "fmt"

// TypingKey returns the key holding user's typing signal in thread.
// Pattern: labdesk:{workspace}:typing:{thread}:{user}
func TypingKey(workspace, thread, user string) string {
	return typingPrefix(workspace, thread) + user
}

// ReceiptKey returns the key holding user's last-read message id in thread.
// Pattern: labdesk:{workspace}:read:{thread}:{user}
func ReceiptKey(workspace, thread, user string) string {
	return receiptPrefix(workspace, thread) + user
}

func typingPrefix(workspace, thread string) string {
	return fmt.Sprintf("labdesk:%s:typing:%s:", workspace, thread)
}

func receiptPrefix(workspace, thread string) string {
	return fmt.Sprintf("labdesk:%s:read:%s:", workspace, thread)
}
