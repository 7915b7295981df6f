package identity

import "testing"

func TestNormalizePhoneKeepsLastNineDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+351 912 345 678", "912345678"},
		{"912345678", "912345678"},
		{"00351912345678", "912345678"},
		{"(912) 345-678", "912345678"},
		{"12345", "12345"},
		{"", ""},
		{"abc", ""},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  John.Doe@Example.COM "); got != "john.doe@example.com" {
		t.Fatalf("unexpected normalized email %q", got)
	}
}

func TestComputeDedupeKeyDependsOnlyOnTrailingDigits(t *testing.T) {
	a := ComputeDedupeKey("+351 912 345 678", "")
	b := ComputeDedupeKey("912345678", "")
	if a == "" || a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
}

func TestComputeDedupeKeyPhoneWinsOverEmail(t *testing.T) {
	withEmail := ComputeDedupeKey("912345678", "a@b.com")
	phoneOnly := ComputeDedupeKey("912345678", "")
	if withEmail != phoneOnly {
		t.Fatalf("expected phone to take priority, got %q vs %q", withEmail, phoneOnly)
	}
	if withEmail != "phone:912345678" {
		t.Fatalf("unexpected key %q", withEmail)
	}
}

func TestComputeDedupeKeyFallsBackToEmail(t *testing.T) {
	if got := ComputeDedupeKey("123", "A@B.com"); got != "email:a@b.com" {
		t.Fatalf("expected email key for short phone, got %q", got)
	}
}

func TestComputeDedupeKeyEmptyWithoutIdentity(t *testing.T) {
	if got := ComputeDedupeKey("", ""); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
	if got := ComputeDedupeKey("12", "   "); got != "" {
		t.Fatalf("expected empty key for unusable identity, got %q", got)
	}
}
