package notification

import (
	"Go2FctSpectra/internal/config"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestEmailNotifier_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	n, err := NewEmailNotifier(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587, Username: "alerts", Password: "pw",
		From: "FCT Alerts <alerts@example.com>", To: "a@example.com, Bob <b@example.com>",
	})
	if err != nil {
		t.Fatalf("NewEmailNotifier failed: %v", err)
	}
	n.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	if err := n.Send("Alert", "<h1>hi</h1>"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAddr != "smtp.example.com:587" || gotFrom != "alerts@example.com" {
		t.Errorf("Unexpected address or sender: %s, %s", gotAddr, gotFrom)
	}
	if gotAuth == nil {
		t.Error("Expected credentials when a username is configured")
	}
	if len(gotTo) != 2 || gotTo[0] != "a@example.com" || gotTo[1] != "b@example.com" {
		t.Errorf("Expected bare envelope recipients, got %v", gotTo)
	}
	msg := string(gotMsg)
	for _, want := range []string{
		"Subject: Alert\r\n",
		"Date: Fri, 01 Mar 2024 12:00:00 +0000\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in message: %q", want, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<h1>hi</h1>") {
		t.Errorf("Expected the body after the headers, got %q", msg)
	}
}

func TestEmailNotifier_EncodesSubject(t *testing.T) {
	n, err := NewEmailNotifier(config.SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com", To: "b@example.com"})
	if err != nil {
		t.Fatalf("NewEmailNotifier failed: %v", err)
	}
	msg := string(n.message("FCT ≥ 1s", "x"))
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Errorf("Expected a Q-encoded subject, got %q", msg)
	}
}

func TestEmailNotifier_SendError(t *testing.T) {
	n, err := NewEmailNotifier(config.SMTPConfig{Host: "localhost", Port: 25, From: "a@example.com", To: "b@example.com"})
	if err != nil {
		t.Fatalf("NewEmailNotifier failed: %v", err)
	}
	if n.auth != nil {
		t.Error("Expected no credentials without a username")
	}
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	if err := n.Send("s", "b"); err == nil {
		t.Fatal("Expected the transport error to be returned")
	}
}

func TestNewEmailNotifier_InvalidAddresses(t *testing.T) {
	tests := []config.SMTPConfig{
		{Host: "localhost", From: "", To: "b@example.com"},
		{Host: "localhost", From: "a@example.com", To: ""},
		{Host: "localhost", From: "a@example.com", To: "not an address"},
	}
	for i, cfg := range tests {
		if _, err := NewEmailNotifier(cfg); err == nil {
			t.Errorf("Case %d: expected an error for %+v", i, cfg)
		}
	}
}
