package security

import "testing"

const testMaxMessageLength = 500

func TestValidateMessage_RejectsEmpty(t *testing.T) {
	if r := ValidateMessage("", testMaxMessageLength); r.Valid {
		t.Error("empty message should be rejected")
	}
}

func TestValidateMessage_LengthBoundary(t *testing.T) {
	exactly500 := make([]byte, 500)
	for i := range exactly500 {
		exactly500[i] = 'a'
	}
	if r := ValidateMessage(string(exactly500), testMaxMessageLength); !r.Valid {
		t.Error("B1: exactly 500 chars should be accepted")
	}

	over := string(exactly500) + "a"
	if r := ValidateMessage(over, testMaxMessageLength); r.Valid {
		t.Error("B1: 501 chars should be rejected")
	}
}

func TestValidateMessage_RejectsDangerousPatterns(t *testing.T) {
	cases := []string{
		"hello <script>alert(1)</script>",
		"<iframe src=evil></iframe>",
		"click me javascript:doEvil()",
		`<img onerror="doEvil()">`,
		"eval(maliciousCode)",
		"1 OR 1=1",
		"UNION SELECT password FROM users",
		"x; DROP TABLE users",
	}
	for _, c := range cases {
		if r := ValidateMessage(c, testMaxMessageLength); r.Valid {
			t.Errorf("ValidateMessage(%q) should be rejected", c)
		}
	}
}

func TestValidateMessage_FiltersProfanityWholeWord(t *testing.T) {
	r := ValidateMessage("what the hell is going on", testMaxMessageLength)
	if !r.Valid {
		t.Fatal("message should be valid")
	}
	if r.Filtered != "what the **** is going on" {
		t.Errorf("Filtered = %q, want %q", r.Filtered, "what the **** is going on")
	}
}

func TestValidateMessage_DoesNotFilterPartialWordMatch(t *testing.T) {
	r := ValidateMessage("hello there", testMaxMessageLength)
	if r.Filtered != "hello there" {
		t.Errorf("Filtered = %q, want no change (hell is not a whole-word match)", r.Filtered)
	}
}

func TestValidateMessage_ErrSetOnRejection(t *testing.T) {
	r := ValidateMessage("", testMaxMessageLength)
	if r.Err != ErrInvalidMessage {
		t.Errorf("Err = %v, want %v", r.Err, ErrInvalidMessage)
	}
}

func TestFilterProfanity_Idempotent(t *testing.T) {
	s := "that is hell on earth"
	once := FilterProfanity(s)
	twice := FilterProfanity(once)
	if once != twice {
		t.Errorf("FilterProfanity is not idempotent: %q != %q", once, twice)
	}
}
