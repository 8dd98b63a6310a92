package firebase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
)

var errDeadToken = errors.New("registration-token-not-registered")

type fakeSender struct {
	batches [][]string
	fail    map[string]error
	err     error
}

func (f *fakeSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, msg.Tokens)

	resp := &messaging.BatchResponse{}
	for _, tok := range msg.Tokens {
		if err, ok := f.fail[tok]; ok {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: err})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "m-" + tok})
	}
	return resp, nil
}

func withInvalidTokenCheck(t *testing.T) {
	t.Helper()
	orig := isInvalidToken
	isInvalidToken = func(err error) bool { return errors.Is(err, errDeadToken) }
	t.Cleanup(func() { isInvalidToken = orig })
}

func TestSendMulticast_Batches(t *testing.T) {
	tokens := make([]string, 1203)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	sender := &fakeSender{}
	c := newClient(sender, nil, nil)

	if err := c.SendMulticast(context.Background(), tokens, "t", "b", nil); err != nil {
		t.Fatalf("SendMulticast error: %v", err)
	}

	if len(sender.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(sender.batches))
	}
	if len(sender.batches[0]) != 500 || len(sender.batches[2]) != 203 {
		t.Errorf("batch sizes = %d, %d", len(sender.batches[0]), len(sender.batches[2]))
	}
}

func TestSendMulticast_DeactivatesInvalidTokens(t *testing.T) {
	withInvalidTokenCheck(t)

	sender := &fakeSender{fail: map[string]error{
		"dead":  errDeadToken,
		"flaky": errors.New("internal"),
	}}
	var deactivated []string
	c := newClient(sender, func(ctx context.Context, token string) error {
		deactivated = append(deactivated, token)
		return nil
	}, nil)

	err := c.SendMulticast(context.Background(), []string{"ok", "dead", "flaky"}, "Reconnect", "body", map[string]string{"route": "items"})
	if err != nil {
		t.Fatalf("SendMulticast error: %v", err)
	}
	if len(deactivated) != 1 || deactivated[0] != "dead" {
		t.Errorf("deactivated = %v, want [dead]", deactivated)
	}
}

func TestSendMulticast_EmptyAndBatchError(t *testing.T) {
	sender := &fakeSender{err: errors.New("quota exceeded")}
	c := newClient(sender, nil, nil)

	if err := c.SendMulticast(context.Background(), nil, "t", "b", nil); err != nil {
		t.Errorf("empty token list should be a no-op, got %v", err)
	}
	if err := c.SendMulticast(context.Background(), []string{"a"}, "t", "b", nil); err == nil {
		t.Error("expected batch error")
	}
}

func TestChunkTokens(t *testing.T) {
	if got := chunkTokens(nil, 500); len(got) != 0 {
		t.Errorf("chunkTokens(nil) = %v", got)
	}
	got := chunkTokens([]string{"a", "b", "c"}, 2)
	if len(got) != 2 || len(got[0]) != 2 || len(got[1]) != 1 {
		t.Errorf("chunkTokens = %v", got)
	}
}
