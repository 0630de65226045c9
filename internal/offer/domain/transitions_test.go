package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	path := []Status{
		StatusPendingGatewayApproval,
		StatusAuthorized,
		StatusPendingProof,
		StatusProofSubmitted,
		StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransitionRejectsSkipsAndBackwards(t *testing.T) {
	cases := [][2]Status{
		{StatusPendingGatewayApproval, StatusPendingProof},
		{StatusAuthorized, StatusCompleted},
		{StatusPendingProof, StatusCompleted},
		{StatusPendingProof, StatusAuthorized},
		{StatusProofSubmitted, StatusCancelled},
		{StatusProofSubmitted, StatusDeclined},
		{StatusCompleted, StatusRefunded},
		{StatusCancelled, StatusAuthorized},
	}
	for _, tc := range cases {
		if CanTransition(tc[0], tc[1]) {
			t.Fatalf("expected %s -> %s to be rejected", tc[0], tc[1])
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[Status]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusDeclined:  true,
		StatusRefunded:  true,
		StatusDisputed:  true,
	}
	for _, status := range AllStatuses {
		if status.IsTerminal() != terminal[status] {
			t.Fatalf("unexpected terminal flag for %s", status)
		}
		if !status.Valid() {
			t.Fatalf("expected %s to be valid", status)
		}
	}
	if Status("settled").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
}

func TestEveryNonTerminalStatusCanBeDisputed(t *testing.T) {
	for _, status := range AllStatuses {
		if status.IsTerminal() {
			continue
		}
		if !CanTransition(status, StatusDisputed) {
			t.Fatalf("expected %s -> disputed", status)
		}
	}
}

func TestSources(t *testing.T) {
	got := Sources(StatusCancelled)
	want := []Status{StatusPendingGatewayApproval, StatusAuthorized, StatusPendingProof}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
