package intent

import "testing"

func TestPhraseMatchers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"reset start over", IsReset, "Let's start over", true},
		{"reset restart", IsReset, "restart please", true},
		{"reset negative", IsReset, "I want a Toyota", false},
		{"status of application", IsStatusCheck, "What's the status of my application?", true},
		{"track request", IsStatusCheck, "track my request", true},
		{"application number", IsStatusCheck, "my application number is 12", true},
		{"status negative", IsStatusCheck, "I want a Toyota", false},
		{"closing thanks", IsClosing, "Thanks!", true},
		{"closing bye", IsClosing, "bye", true},
		{"closing must lead", IsClosing, "ok thanks", false},
		{"closing arabic", IsClosing, "شكرا", true},
		{"greeting", IsGreeting, "Hello there", true},
		{"back", IsBack, "back", true},
		{"back zero", IsBack, "0", true},
		{"back negative", IsBack, "2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Fatalf("got %v for %q, want %v", got, tt.in, tt.want)
			}
		})
	}
}

func TestParseConfirmation(t *testing.T) {
	tests := map[string]Confirmation{
		"Yes please":               ConfirmationYes,
		"OK":                       ConfirmationYes,
		"go ahead":                 ConfirmationYes,
		"continue anyway":          ConfirmationYes,
		"نعم":                      ConfirmationYes,
		"no thanks":                ConfirmationNo,
		"nope":                     ConfirmationNo,
		"show me a different car":  ConfirmationNo,
		"لا":                       ConfirmationNo,
		"maybe":                    ConfirmationUnknown,
		"not sure":                 ConfirmationUnknown,
		"I think yes":              ConfirmationUnknown,
		"Find a 2022 Toyota Camry": ConfirmationUnknown,
	}
	for in, want := range tests {
		if got := ParseConfirmation(in); got != want {
			t.Errorf("ParseConfirmation(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"2", 2, true},
		{" 7 ", 7, true},
		{"the second one", 2, true},
		{"I'll take the 3rd", 3, true},
		{"number 4 please", 4, true},
		{"the blue one", 0, false},
		{"the 2022 model", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSelection(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSelection(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractApplicationID(t *testing.T) {
	got := ExtractApplicationID("status of 3F2504E0-4F89-11D3-9A0C-0305E82C3301 please")
	if got != "3f2504e0-4f89-11d3-9a0c-0305e82c3301" {
		t.Fatalf("ExtractApplicationID() = %q", got)
	}
	if ExtractApplicationID("no id here") != "" {
		t.Fatal("expected empty id")
	}
}
