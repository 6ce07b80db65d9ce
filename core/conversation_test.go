package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tidwall/gjson"
)

func TestConversationChainsResponses(t *testing.T) {
	ft := &fakeTransport{}
	ft.sendFunc = func(context.Context, *TransportRequest) (*TransportResponse, error) {
		n := ft.sendCount()
		return jsonResponse(200, completedResponse(fmt.Sprintf("resp_%d", n), "ok")), nil
	}
	conv := NewConversation(NewClient(ft), "gpt-4o", WithInstructions("be helpful"))

	for i := 1; i <= 3; i++ {
		if _, err := conv.Send(context.Background(), fmt.Sprintf("turn %d", i)); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
		body := ft.lastSend().Body
		wantPrev := ""
		if i > 1 {
			wantPrev = fmt.Sprintf("resp_%d", i-1)
		}
		if got := gjson.GetBytes(body, "previous_response_id").String(); got != wantPrev {
			t.Errorf("turn %d previous_response_id = %q, want %q", i, got, wantPrev)
		}
		if got := gjson.GetBytes(body, "input.#").Int(); got != 1 {
			t.Errorf("turn %d sent %d input items, want only the new turn", i, got)
		}
		if gjson.GetBytes(body, "instructions").String() != "be helpful" {
			t.Errorf("turn %d instructions missing", i)
		}
	}
	if conv.Turns() != 3 || conv.LastResponseID() != "resp_3" {
		t.Errorf("Turns() = %d, LastResponseID() = %q", conv.Turns(), conv.LastResponseID())
	}

	conv.Reset()
	if _, err := conv.Send(context.Background(), "fresh"); err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(ft.lastSend().Body, "previous_response_id").Exists() {
		t.Error("Reset() did not clear the chain")
	}
}

func TestConversationResumeAndToolOutputs(t *testing.T) {
	ft := &fakeTransport{}
	conv := NewConversation(NewClient(ft), "gpt-4o", ResumeFrom("resp_old"))

	_, err := conv.SendMessages(context.Background(), ToolOutputMessage("call_1", "42"), ToolOutputMessage("call_2", "43"))
	if err != nil {
		t.Fatal(err)
	}
	body := ft.lastSend().Body
	if gjson.GetBytes(body, "previous_response_id").String() != "resp_old" {
		t.Errorf("body = %s", body)
	}
	if gjson.GetBytes(body, "input.1.call_id").String() != "call_2" || gjson.GetBytes(body, "input.1.type").String() != TypeFunctionCallOutput {
		t.Errorf("tool outputs = %s", gjson.GetBytes(body, "input").Raw)
	}
}

func TestConversationFailureKeepsChain(t *testing.T) {
	ft := &fakeTransport{sendFunc: func(context.Context, *TransportRequest) (*TransportResponse, error) {
		return jsonResponse(400, `{"error":{"message":"bad"}}`), nil
	}}
	conv := NewConversation(NewClient(ft), "gpt-4o", ResumeFrom("resp_keep"))
	if _, err := conv.Send(context.Background(), "x"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("Send() error = %v", err)
	}
	if conv.LastResponseID() != "resp_keep" || conv.Turns() != 0 {
		t.Errorf("chain changed after failure: %q, %d", conv.LastResponseID(), conv.Turns())
	}
}
