package models

import (
	"errors"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"SEV1", SeveritySEV1, false},
		{"sev2", SeveritySEV2, false},
		{"  SEV3 ", SeveritySEV3, false},
		{"SEV4", SeveritySEV4, false},
		{"SEV5", "", true},
		{"critical", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseSeverity(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSeverity(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeverity(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	valid := []struct{ from, to Status }{
		{StatusOpen, StatusInvestigating},
		{StatusInvestigating, StatusResolved},
		{StatusResolved, StatusClosed},
	}
	for _, tc := range valid {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Errorf("expected %s → %s to be valid: %v", tc.from, tc.to, err)
		}
	}

	invalid := []struct{ from, to Status }{
		{StatusOpen, StatusResolved},      // skips INVESTIGATING
		{StatusInvestigating, StatusOpen}, // backward
		{StatusResolved, StatusOpen},
		{StatusClosed, StatusResolved},
		{StatusOpen, StatusClosed},
	}
	for _, tc := range invalid {
		if err := ValidateTransition(tc.from, tc.to); err == nil {
			t.Errorf("expected %s → %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestIncidentTransitionTo(t *testing.T) {
	inc := &Incident{ID: "INC-20250101-001", Status: StatusOpen}

	if err := inc.TransitionTo(StatusInvestigating); err != nil {
		t.Fatalf("TransitionTo(INVESTIGATING): %v", err)
	}
	if inc.Status != StatusInvestigating {
		t.Errorf("expected status INVESTIGATING, got %s", inc.Status)
	}

	err := inc.TransitionTo(StatusOpen)
	if err == nil {
		t.Fatal("expected backward transition to fail")
	}
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Errorf("expected InvalidStateError, got %T", err)
	}
	if inc.Status != StatusInvestigating {
		t.Errorf("failed transition must not change status, got %s", inc.Status)
	}
}

func TestAlertValidate(t *testing.T) {
	ok := Alert{Severity: SeveritySEV2, Service: "payment-api", Message: "High error rate"}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid alert rejected: %v", err)
	}

	bad := []Alert{
		{Service: "payment-api", Message: "msg"},                   // missing severity
		{Severity: "SEV9", Service: "payment-api", Message: "msg"}, // bad severity
		{Severity: SeveritySEV2, Message: "msg"},                   // missing service
		{Severity: SeveritySEV2, Service: "payment-api"},           // missing message
		{Severity: SeveritySEV2, Service: "   ", Message: "msg"},   // blank service
	}
	for i, a := range bad {
		if err := a.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestParseActionEnums(t *testing.T) {
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("expected unknown priority to be rejected")
	}
	if p, err := ParsePriority(" high "); err != nil || p != PriorityHigh {
		t.Errorf("ParsePriority(high) = %q, %v", p, err)
	}
	if _, err := ParseCategory("infrastructure"); err == nil {
		t.Error("expected unknown category to be rejected")
	}
	if c, err := ParseCategory("Monitoring"); err != nil || c != CategoryMonitoring {
		t.Errorf("ParseCategory(Monitoring) = %q, %v", c, err)
	}
}
