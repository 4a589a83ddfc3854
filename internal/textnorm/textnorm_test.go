package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Email", "email"},
		{"  Full   NAME ", "full name"},
		{"full name", "full name"},
		{"First\tName\n", "first name"},
		{" Phone  Number", "phone number"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"", "a", "  A  b\t\tC ", "Enter your Email", "user_email_address", "ÉCOLE  Name"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeCaseAndSpaceInsensitive(t *testing.T) {
	if Normalize("  Full   NAME ") != Normalize("full name") {
		t.Fatal("expected case/whitespace insensitive normalization")
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		haystack, needle string
		want             bool
	}{
		{"user_email_address", "email", true},
		{"Enter your Email", "email", true},
		{"Enter your  Email", "your email", true},
		{"phone", "email", false},
		{"", "email", false},
		{"email", "", false},
		{"email", "   ", false},
	}
	for _, tt := range tests {
		if got := Contains(tt.haystack, tt.needle); got != tt.want {
			t.Errorf("Contains(%q, %q) = %v, want %v", tt.haystack, tt.needle, got, tt.want)
		}
	}
}
