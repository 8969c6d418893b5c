package registration

import (
	"errors"
	"testing"
	"time"
)

func TestSubmitInputValidateReportsFirstOffendingField(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		input SubmitInput
		field string
	}{
		{
			name:  "tipo desconhecido",
			input: SubmitInput{Type: "marriage", PersonFullName: "Maria", PersonDateOfEvent: "2020-01-01", PersonPlaceOfEvent: "Zabelê"},
			field: "registration_type",
		},
		{
			name:  "nome vazio",
			input: SubmitInput{Type: "birth", PersonFullName: "   ", PersonDateOfEvent: "2020-01-01", PersonPlaceOfEvent: "Zabelê"},
			field: "person_full_name",
		},
		{
			name:  "data ausente",
			input: SubmitInput{Type: "birth", PersonFullName: "Maria", PersonDateOfEvent: "", PersonPlaceOfEvent: "Zabelê"},
			field: "person_date_of_event",
		},
		{
			name:  "data mal formada",
			input: SubmitInput{Type: "birth", PersonFullName: "Maria", PersonDateOfEvent: "01/02/2020", PersonPlaceOfEvent: "Zabelê"},
			field: "person_date_of_event",
		},
		{
			name:  "data futura",
			input: SubmitInput{Type: "birth", PersonFullName: "Maria", PersonDateOfEvent: "2027-01-01", PersonPlaceOfEvent: "Zabelê"},
			field: "person_date_of_event",
		},
		{
			name:  "local vazio",
			input: SubmitInput{Type: "death", PersonFullName: "João", PersonDateOfEvent: "2020-01-01", PersonPlaceOfEvent: ""},
			field: "person_place_of_event",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.input.Validate(now)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestSubmitInputValidateNormalizes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sub, err := SubmitInput{
		Type:               " BIRTH ",
		PersonFullName:     "  Maria da Silva  ",
		PersonDateOfEvent:  "2020-06-15",
		PersonPlaceOfEvent: " Zabelê ",
		PersonGender:       "  ",
		HospitalFacility:   " Hospital Municipal ",
	}.Validate(now)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	if sub.Type != TypeBirth {
		t.Fatalf("expected birth, got %s", sub.Type)
	}
	if sub.PersonFullName != "Maria da Silva" {
		t.Fatalf("expected trimmed name, got %q", sub.PersonFullName)
	}
	if sub.PersonGender != nil {
		t.Fatalf("expected empty gender to become nil")
	}
	if sub.HospitalFacility == nil || *sub.HospitalFacility != "Hospital Municipal" {
		t.Fatalf("expected trimmed hospital, got %v", sub.HospitalFacility)
	}
}

func TestStatusPresent(t *testing.T) {
	cases := map[Status]Presentation{
		StatusPending:     {Label: "Submitted", Tone: "pending"},
		StatusUnderReview: {Label: "Under Review", Tone: "under-review"},
		StatusApproved:    {Label: "Approved", Tone: "approved"},
		StatusRejected:    {Label: "Rejected", Tone: "rejected"},
	}

	for status, want := range cases {
		got, err := status.Present()
		if err != nil {
			t.Fatalf("present %s: %v", status, err)
		}
		if got != want {
			t.Fatalf("present %s: expected %+v, got %+v", status, want, got)
		}
	}

	if _, err := Status("archived").Present(); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusUnderReview.Terminal() {
		t.Fatal("pending/under_review must not be terminal")
	}
	if !StatusApproved.Terminal() || !StatusRejected.Terminal() {
		t.Fatal("approved/rejected must be terminal")
	}
}
