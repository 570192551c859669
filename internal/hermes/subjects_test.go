package hermes

import (
	"strings"
	"testing"
)

func TestSubjectsUnderStream(t *testing.T) {
	subjects := []string{
		SubjectRequestCreated("r1"),
		SubjectRequestStatus("r1"),
		SubjectMessageCreated("u1"),
		SubjectDancerRegistered("d1"),
		SubjectDancerReviewed("d1"),
		SubjectCreditsSpent("u1"),
		SubjectCreditsPurchased("u1"),
	}
	for _, s := range subjects {
		if !strings.HasPrefix(s, "casting.") {
			t.Errorf("subject %q is outside the casting stream", s)
		}
	}
}

func TestMessageSubjectMatchesWildcard(t *testing.T) {
	got := strings.Split(SubjectMessageCreated("abc"), ".")
	want := strings.Split(SubjectAllMessages, ".")
	if len(got) != len(want) {
		t.Fatalf("token count mismatch: %v vs %v", got, want)
	}
	for i := range want {
		if want[i] != "*" && want[i] != got[i] {
			t.Errorf("token %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestNoopClient(t *testing.T) {
	var c Client = NoopClient{}
	if err := c.Publish("casting.x", map[string]string{"a": "b"}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if err := c.Subscribe("casting.>", func(string, []byte) {}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	c.Close()
}
