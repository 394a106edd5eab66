package hub

import "testing"

func TestBroadcastJointAcceptsByDefault(t *testing.T) {
	h := NewMem()
	joint := map[string]interface{}{"unit": "u1"}
	if err := h.BroadcastJoint(joint); err != nil {
		t.Fatalf("expected the fake hub to accept by default, got %v", err)
	}
	if len(h.Sent) != 1 {
		t.Fatalf("expected the joint to be recorded, got %d sent", len(h.Sent))
	}
}

func TestBroadcastJointFailsOnceThenResets(t *testing.T) {
	h := NewMem()
	h.FailNext = true

	if err := h.BroadcastJoint(map[string]interface{}{"unit": "u1"}); err == nil {
		t.Fatal("expected the primed failure to reject the first call")
	}
	if h.FailNext {
		t.Fatal("expected FailNext to reset itself after one failed call")
	}
	if len(h.Sent) != 0 {
		t.Fatalf("expected the failed joint not to be recorded, got %+v", h.Sent)
	}

	if err := h.BroadcastJoint(map[string]interface{}{"unit": "u2"}); err != nil {
		t.Fatalf("expected the second call to succeed, got %v", err)
	}
	if len(h.Sent) != 1 {
		t.Fatalf("expected exactly one recorded joint, got %d", len(h.Sent))
	}
}
