package llm

import (
	"encoding/json"
	"testing"
	"time"
)

// Representative Ollama /api/chat payloads.

func TestOllamaWireResponse_BasicChat(t *testing.T) {
	raw := `{
		"model": "llama3:8b",
		"created_at": "2026-02-11T15:00:00.123456789Z",
		"message": {
			"role": "assistant",
			"content": "The video walks through three sorting algorithms."
		},
		"done": true,
		"done_reason": "stop",
		"total_duration": 1234567890,
		"load_duration": 100000000,
		"prompt_eval_count": 4200,
		"prompt_eval_duration": 500000000,
		"eval_count": 150,
		"eval_duration": 600000000
	}`

	var wire ollamaWireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	resp := wire.toChatResponse()

	if resp.Model != "llama3:8b" {
		t.Errorf("Model = %q, want %q", resp.Model, "llama3:8b")
	}
	if resp.CreatedAt.Year() != 2026 || resp.CreatedAt.Month() != time.February {
		t.Errorf("CreatedAt = %v, expected 2026-02", resp.CreatedAt)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("Message.Role = %q, want %q", resp.Message.Role, RoleAssistant)
	}
	if !resp.Done {
		t.Error("Done = false, want true")
	}
	if resp.InputTokens != 4200 || resp.OutputTokens != 150 {
		t.Errorf("tokens = %d/%d, want 4200/150", resp.InputTokens, resp.OutputTokens)
	}
	if resp.TotalDuration != 1234567890*time.Nanosecond {
		t.Errorf("TotalDuration = %v", resp.TotalDuration)
	}
	if resp.EvalDuration != 600*time.Millisecond {
		t.Errorf("EvalDuration = %v", resp.EvalDuration)
	}
}

func TestOllamaWireResponse_StreamChunk(t *testing.T) {
	raw := `{"model":"llama3:8b","created_at":"2026-02-11T15:00:00Z","message":{"role":"assistant","content":"Hel"},"done":false}`

	var wire ollamaWireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	resp := wire.toChatResponse()
	if resp.Done {
		t.Error("intermediate chunk reported Done")
	}
	if resp.Message.Content != "Hel" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 0 || resp.TotalDuration != 0 {
		t.Error("intermediate chunk should carry no usage")
	}
}

func TestOllamaWireResponse_BadTimestamp(t *testing.T) {
	wire := ollamaWireResponse{CreatedAt: "yesterday"}
	if !wire.toChatResponse().CreatedAt.IsZero() {
		t.Error("unparseable created_at should yield zero time")
	}
}

func TestOllamaRequest_SendsZeroTemperature(t *testing.T) {
	req := ollamaRequest{
		Model:    "llama3",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Options:  ollamaOptions{Temperature: 0, NumPredict: 2000},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	opts, ok := decoded["options"].(map[string]any)
	if !ok {
		t.Fatalf("options missing from %s", data)
	}
	if v, ok := opts["temperature"]; !ok || v.(float64) != 0 {
		t.Errorf("temperature = %v (present %v), want explicit 0", v, ok)
	}
	if opts["num_predict"].(float64) != 2000 {
		t.Errorf("num_predict = %v", opts["num_predict"])
	}
	if decoded["stream"] != false {
		t.Errorf("stream = %v, want false", decoded["stream"])
	}
}
