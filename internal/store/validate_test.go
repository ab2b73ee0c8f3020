package store

import (
	"strings"
	"testing"
	"time"
)

func TestNormalizeMethod(t *testing.T) {
	for _, m := range []string{"get", "POST", "Put", "delete", "PATCH", "head", "options"} {
		got, err := NormalizeMethod(m)
		if err != nil {
			t.Fatalf("method %q: unexpected error: %v", m, err)
		}
		if got != strings.ToUpper(m) {
			t.Errorf("method %q: expected %q, got %q", m, strings.ToUpper(m), got)
		}
	}
}

func TestNormalizeMethod_DefaultsToGET(t *testing.T) {
	got, err := NormalizeMethod("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "GET" {
		t.Errorf("expected GET, got %q", got)
	}
}

func TestNormalizeMethod_Invalid(t *testing.T) {
	_, err := NormalizeMethod("INVALID")
	if err == nil {
		t.Fatal("expected error for INVALID method")
	}
	if !IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

func TestValidateTask_URLScheme(t *testing.T) {
	cases := []struct {
		url string
		ok  bool
	}{
		{"http://example.com", true},
		{"https://example.com/path", true},
		{"ftp://example.com", false},
		{"example.com", false},
		{"", false},
	}
	for _, c := range cases {
		task := &RequestTask{Name: "t", RequestURL: c.url, Method: "GET"}
		err := ValidateTask(task)
		if c.ok && err != nil {
			t.Errorf("url %q: unexpected error: %v", c.url, err)
		}
		if !c.ok && err == nil {
			t.Errorf("url %q: expected error", c.url)
		}
	}
}

func TestValidateTask_CallbackURLScheme(t *testing.T) {
	task := &RequestTask{RequestURL: "http://example.com", Method: "GET", CallbackURL: "gopher://cb"}
	if err := ValidateTask(task); err == nil {
		t.Fatal("expected error for bad callback_url scheme")
	}
}

func TestAPIKeyUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	k := &APIKey{Active: true}
	if !k.Usable(now) {
		t.Error("active key with no expiry should be usable")
	}
	k = &APIKey{Active: false}
	if k.Usable(now) {
		t.Error("inactive key should not be usable")
	}
	k = &APIKey{Active: true, ExpiresAt: &past}
	if k.Usable(now) {
		t.Error("expired key should not be usable")
	}
	k = &APIKey{Active: true, ExpiresAt: &future}
	if !k.Usable(now) {
		t.Error("unexpired key should be usable")
	}
}

func TestTaskToDict(t *testing.T) {
	st := time.Unix(1700000000, 500e6)
	task := &RequestTask{
		ID:         7,
		UserID:     3,
		Name:       "dict",
		RequestURL: "http://example.com",
		Method:     "POST",
		Header:     map[string]string{"Authorization": "Bearer x"},
		StartTime:  &st,
		Status:     StatusPending,
	}
	d := task.ToDict()

	if d["name"] != "dict" || d["method"] != "POST" {
		t.Errorf("unexpected dict: %v", d)
	}
	if d["message_id"] != nil || d["job_id"] != nil {
		t.Errorf("empty handles should serialize as null")
	}
	if got := d["start_time"].(float64); got != 1700000000.5 {
		t.Errorf("start_time: expected 1700000000.5, got %v", got)
	}
	if d["status"] != "PENDING" {
		t.Errorf("status: got %v", d["status"])
	}
}
