package llm

import (
	"context"
	"fmt"
)

// EchoReplier stands in for a model: it quotes the message back along
// with its reversal.
type EchoReplier struct{}

func (EchoReplier) GenerateReply(ctx context.Context, userText string) (string, error) {
	return fmt.Sprintf(`[AI Echo] You said: "%s" | Reversed: "%s"`, userText, reverse(userText)), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
