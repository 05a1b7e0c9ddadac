package models

import (
	"testing"
)

func TestChatRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *ChatRequest
		wantErr bool
	}{
		{"empty message", &ChatRequest{UserID: "u1", Message: ""}, true},
		{"whitespace message", &ChatRequest{UserID: "u1", Message: "   "}, true},
		{"missing user", &ChatRequest{Message: "hello"}, true},
		{"valid request", &ChatRequest{UserID: "u1", Message: "hello"}, false},
		{"trims fields", &ChatRequest{UserID: " u1 ", Message: "  hi  ", Mode: " web "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.name == "trims fields" {
				if tt.req.UserID != "u1" || tt.req.Message != "hi" || tt.req.Mode != "web" {
					t.Errorf("fields not trimmed: %+v", tt.req)
				}
			}
		})
	}
}

func TestAssembledContext_Grounded(t *testing.T) {
	if NoGrounding().Grounded() {
		t.Error("sentinel must not be grounded")
	}
	c := AssembledContext{Items: []CitableItem{{Index: 1, ID: "d1", Source: "s", Content: "c"}}}
	if !c.Grounded() {
		t.Error("context with items must be grounded")
	}
}

func TestDefaultIntentAnalysis(t *testing.T) {
	d := DefaultIntentAnalysis()
	if d.TimeContext.Kind != TimeUnspecified {
		t.Errorf("time kind = %s, want unspecified", d.TimeContext.Kind)
	}
	if d.RequiredInfo == nil || len(d.RequiredInfo) != 0 {
		t.Errorf("required info should be empty non-nil, got %#v", d.RequiredInfo)
	}
	if d.CoreQuestion != "" || d.ImplicitContext != "" {
		t.Errorf("strings should be empty: %+v", d)
	}
}
