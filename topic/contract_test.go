package topic

import "testing"

func TestSubscriptionsCoverAllSevenTopicsNoDuplicates(t *testing.T) {
	c := New("dev1")
	subs := c.Subscriptions()

	if len(subs) != 7 {
		t.Fatalf("Subscriptions() returned %d topics, want 7", len(subs))
	}

	want := map[string]bool{
		c.UpdateAccepted: false,
		c.UpdateRejected: false,
		c.GetAccepted:    false,
		c.GetRejected:    false,
		c.DeleteAccepted: false,
		c.DeleteRejected: false,
		c.Delta:          false,
	}
	for _, s := range subs {
		if _, ok := want[s]; !ok {
			t.Errorf("unexpected subscription topic %q", s)
			continue
		}
		want[s] = true
	}
	for topicName, seen := range want {
		if !seen {
			t.Errorf("expected topic %q to be subscribed", topicName)
		}
	}
}

func TestClassifyMatchesExactTopics(t *testing.T) {
	c := New("dev1")

	tests := []struct {
		topic string
		want  Classification
	}{
		{c.UpdateAccepted, Classification{Verb: Update, Accepted: true}},
		{c.UpdateRejected, Classification{Verb: Update, Accepted: false}},
		{c.GetAccepted, Classification{Verb: Get, Accepted: true}},
		{c.DeleteRejected, Classification{Verb: Delete, Accepted: false}},
		{c.Delta, Classification{IsDelta: true}},
	}

	for _, tt := range tests {
		got, ok := c.Classify(tt.topic)
		if !ok {
			t.Errorf("Classify(%q) ok=false, want true", tt.topic)
			continue
		}
		if got != tt.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tt.topic, got, tt.want)
		}
	}
}

func TestClassifyPrefersLongestMatchForDeltaVsDeltaRejected(t *testing.T) {
	c := New("dev1")

	got, ok := c.Classify(c.DeltaRejected)
	if !ok {
		t.Fatal("Classify(DeltaRejected) ok=false")
	}
	if got.IsDelta != true {
		t.Fatalf("Classify(DeltaRejected) = %+v, want IsDelta", got)
	}
	// Both Delta and DeltaRejected carry IsDelta=true in this contract; what
	// matters is that the longer, more specific topic string is what wins
	// the match rather than the prefix "delta" alone.
	if len(c.DeltaRejected) <= len(c.Delta) {
		t.Fatal("test fixture invariant violated: DeltaRejected must be longer than Delta")
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := New("dev1")
	upper := "BAIDU/IOT/SHADOW/dev1/UPDATE/ACCEPTED"

	got, ok := c.Classify(upper)
	if !ok {
		t.Fatal("Classify() with different case ok=false, want true")
	}
	if got.Verb != Update || !got.Accepted {
		t.Errorf("Classify() = %+v, want Update/accepted", got)
	}
}

func TestClassifyRejectsUnknownTopic(t *testing.T) {
	c := New("dev1")
	if _, ok := c.Classify("baidu/iot/shadow/dev1/unknown"); ok {
		t.Error("Classify() matched an unrecognized topic")
	}
}

func TestRequestTopic(t *testing.T) {
	c := New("dev1")

	if got, ok := c.RequestTopic(Update); !ok || got != c.Update {
		t.Errorf("RequestTopic(Update) = (%q, %v), want (%q, true)", got, ok, c.Update)
	}
	if _, ok := c.RequestTopic(Verb("delta")); ok {
		t.Error("RequestTopic(delta) ok=true, want false: delta has no outbound request topic")
	}
}
