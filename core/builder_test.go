package core

import (
	"context"
	"testing"

	"github.com/tidwall/gjson"
)

func TestResponseBuilderRequest(t *testing.T) {
	c := NewClient(&fakeTransport{})
	req := c.Responses("gpt-4o").
		System("be brief").
		User("Hello").
		Assistant("Hi!").
		ToolOutput("call_1", `{"temp":21}`).
		Instructions("answer in French").
		Temperature(0.3).
		TopP(0.9).
		MaxOutputTokens(100).
		ReasoningEffort(ReasoningEffortMedium).
		WebSearch().
		Tools(FunctionTool("lookup", "Look up", MustValue(map[string]any{"type": "object"}))).
		ForceFunction("lookup").
		ContinueFrom("resp_prev").
		Truncation("auto").
		Metadata("session", "s1").
		Store(true).
		EndUser("u1").
		TraceID("trace-1").
		Request()

	if req.Model != "gpt-4o" || len(req.Input) != 4 {
		t.Fatalf("req = %+v", req)
	}
	wantRoles := []Role{RoleSystem, RoleUser, RoleAssistant, RoleTool}
	for i, role := range wantRoles {
		if req.Input[i].Role != role {
			t.Errorf("Input[%d].Role = %q, want %q", i, req.Input[i].Role, role)
		}
	}
	if *req.Temperature != 0.3 || *req.TopP != 0.9 || *req.MaxOutputTokens != 100 {
		t.Errorf("sampling = %v %v %v", *req.Temperature, *req.TopP, *req.MaxOutputTokens)
	}
	if len(req.Tools) != 2 || req.Tools[0].Type != ToolTypeWebSearch || req.Tools[1].Name != "lookup" {
		t.Errorf("Tools = %+v", req.Tools)
	}
	if req.PreviousResponseID != "resp_prev" || req.Metadata["session"] != "s1" || !*req.Store || req.User != "u1" || req.TraceID != "trace-1" {
		t.Errorf("req = %+v", req)
	}
	if name, _ := req.ToolChoice.Get("name"); !name.Equal(String("lookup")) {
		t.Errorf("ToolChoice = %v", req.ToolChoice)
	}
}

func TestResponseBuilderRequestIsCopy(t *testing.T) {
	b := NewClient(&fakeTransport{}).Responses("m").User("a")
	req := b.Request()
	req.Input = append(req.Input, UserMessage("b"))
	if len(b.Request().Input) != 1 {
		t.Error("Request() shares state with the builder")
	}
}

func TestMessageBuilder(t *testing.T) {
	req := NewClient(&fakeTransport{}).Responses("m").
		UserMultimodal().
		Text("What is this?").
		ImageURLWithDetail("https://example.com/a.png", ImageDetailHigh).
		ImageFileID("file-img").
		ImageData("image/png", []byte{0x89, 0x50}).
		FileID("file-doc").
		FileData("notes.txt", "text/plain", []byte("hi")).
		Done().
		UserWithImageURL("and this?", "https://example.com/b.png").
		UserWithFileID("summarize", "file-2").
		Request()

	if len(req.Input) != 3 {
		t.Fatalf("len(Input) = %d", len(req.Input))
	}
	parts := req.Input[0].Content
	if len(parts) != 6 {
		t.Fatalf("parts = %d", len(parts))
	}
	if img, ok := parts[1].(*InputImage); !ok || img.Detail != ImageDetailHigh || img.ImageURL != "https://example.com/a.png" {
		t.Errorf("parts[1] = %#v", parts[1])
	}
	if img, ok := parts[3].(*InputImage); !ok || !img.IsInline() {
		t.Errorf("parts[3] = %#v, want inline image", parts[3])
	}
	if f, ok := parts[5].(*InputFile); !ok || f.Filename != "notes.txt" || f.FileData == "" {
		t.Errorf("parts[5] = %#v", parts[5])
	}
	if _, ok := req.Input[2].Content[1].(*InputFile); !ok {
		t.Errorf("UserWithFileID part = %#v", req.Input[2].Content[1])
	}
}

func TestResponseBuilderGetResponse(t *testing.T) {
	ft := &fakeTransport{}
	env, err := NewClient(ft).Responses("gpt-4o").User("Hello").GetResponse(context.Background())
	if err != nil {
		t.Fatalf("GetResponse() error = %v", err)
	}
	if env.Payload.Text() != "Hello!" {
		t.Errorf("Text() = %q", env.Payload.Text())
	}
	if got := gjson.GetBytes(ft.lastSend().Body, "input.0.content.0.text").String(); got != "Hello" {
		t.Errorf("sent input = %q", got)
	}
}

func TestResponseBuilderStream(t *testing.T) {
	ft := &fakeTransport{streamFunc: func(context.Context, *TransportRequest) (*StreamResponse, error) {
		return streamOK(newSliceSource(evTextDelta("Hi"), evCompleted("r", "Hi"))), nil
	}}
	s, err := NewClient(ft).Responses("gpt-4o").User("Hello").Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	text, _, err := CollectText(context.Background(), s, nil)
	if err != nil || text != "Hi" {
		t.Errorf("CollectText() = %q, %v", text, err)
	}
}
