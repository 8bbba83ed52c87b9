package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOptTimeOmitted(t *testing.T) {
	var req UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"title":"x"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.DueDate.Set {
		t.Error("omitted dueDate should not be marked set")
	}
}

func TestOptTimeExplicitClear(t *testing.T) {
	for _, body := range []string{`{"dueDate":null}`, `{"dueDate":""}`} {
		var req UpdateTaskRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if !req.DueDate.Set {
			t.Errorf("%s: dueDate should be marked set", body)
		}
		if req.DueDate.Value != nil {
			t.Errorf("%s: dueDate value should be nil, got %v", body, req.DueDate.Value)
		}
	}
}

func TestOptTimeValue(t *testing.T) {
	var req UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"dueDate":"2030-06-01T12:00:00Z"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !req.DueDate.Set || req.DueDate.Value == nil {
		t.Fatal("dueDate should be set with a value")
	}
	want := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	if !req.DueDate.Value.Equal(want) {
		t.Errorf("dueDate = %v, want %v", req.DueDate.Value, want)
	}
}

func TestOptTimeInvalid(t *testing.T) {
	var req UpdateTaskRequest
	if err := json.Unmarshal([]byte(`{"dueDate":"yesterday"}`), &req); err == nil {
		t.Error("invalid dueDate should fail to unmarshal")
	}
}
