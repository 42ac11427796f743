package stabilize

import (
	"testing"

	"xvine/overlay/peerid"
)

func TestTickTargetsPredecessorSlot(t *testing.T) {
	np := Tick(peerid.ID(0x10), peerid.PredecessorFingerIndex)
	if !np.IsPred {
		t.Fatalf("expected predecessor slot to set IsPred")
	}
}

func TestEvaluateVerifyResultAdopt(t *testing.T) {
	outcome := EvaluateVerifyResult(peerid.ID(0x10), peerid.ID(0x30), peerid.ID(0x20))
	if outcome != AdoptPredecessorAsSuccessor {
		t.Fatalf("expected adopt, got %v", outcome)
	}
}

func TestEvaluateVerifyResultKeepWhenReportedIsSelf(t *testing.T) {
	outcome := EvaluateVerifyResult(peerid.ID(0x10), peerid.ID(0x30), peerid.ID(0x10))
	if outcome != KeepSuccessor {
		t.Fatalf("expected keep, got %v", outcome)
	}
}

func TestEvaluateVerifyResultNotifyWhenOutOfRange(t *testing.T) {
	outcome := EvaluateVerifyResult(peerid.ID(0x10), peerid.ID(0x20), peerid.ID(0x90))
	if outcome != NotifySuccessorOfUs {
		t.Fatalf("expected notify, got %v", outcome)
	}
}
