package round

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wricardo/stop-ultra/game/protocol"
)

// harness stands in for the owning event loop: posted callbacks queue up
// until the test runs them
type harness struct {
	clock   clockwork.FakeClock
	posted  chan func()
	emitted []protocol.Action
	ticks   []int
	ctrl    *Controller
}

func newHarness(t *testing.T, localID string) *harness {
	t.Helper()
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		posted: make(chan func(), 16),
	}
	h.ctrl = NewController(localID, Options{
		Clock: h.clock,
		Post:  func(fn func()) { h.posted <- fn },
		Emit: func(action protocol.Action, payload any) error {
			h.emitted = append(h.emitted, action)
			return nil
		},
		OnTick: func(remaining int) { h.ticks = append(h.ticks, remaining) },
	})
	return h
}

// advance moves the fake clock and runs the callback it produced
func (h *harness) advance(t *testing.T, d time.Duration) {
	t.Helper()
	h.clock.Advance(d)
	select {
	case fn := <-h.posted:
		fn()
	case <-time.After(time.Second):
		t.Fatalf("No timer fired after advancing %s", d)
	}
}

func (h *harness) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case <-h.posted:
		t.Fatal("Unexpected timer callback")
	case <-time.After(50 * time.Millisecond):
	}
}

func update(phase protocol.Phase) protocol.GameStateUpdate {
	return protocol.GameStateUpdate{State: phase}
}

func TestController_PlayingAsGuest(t *testing.T) {
	h := newHarness(t, "user_abc")

	changed := h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_xyz"),
		Letter:      protocol.Some("M"),
		Category:    protocol.Some("Frutas"),
		TimeLimit:   protocol.Some(60),
	})

	if !changed {
		t.Error("Expected phase change")
	}
	if h.ctrl.IsModerator() {
		t.Error("Expected local client not to be moderator")
	}
	if h.ctrl.Remaining() != 60 {
		t.Errorf("Expected countdown at 60, got %d", h.ctrl.Remaining())
	}
	if h.ctrl.Round() != 1 {
		t.Errorf("Expected round 1, got %d", h.ctrl.Round())
	}

	view, ok := h.ctrl.View().(PlayingView)
	if !ok {
		t.Fatalf("Expected PlayingView, got %T", h.ctrl.View())
	}
	if view.Letter != "M" || view.Category != "Frutas" || view.TimeLimit != 60 {
		t.Errorf("Unexpected view: %+v", view)
	}

	if err := h.ctrl.Check(protocol.ActionSubmitAnswer, false); err != nil {
		t.Errorf("Guest should be able to answer: %v", err)
	}
	if err := h.ctrl.Check(protocol.ActionForceEndRound, false); !errors.Is(err, ErrIllegalAction) {
		t.Errorf("Guest must not force end, got %v", err)
	}
}

func TestController_CountdownTicks(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_xyz"),
		TimeLimit:   protocol.Some(15),
	})

	for i := 0; i < 3; i++ {
		h.advance(t, time.Second)
	}

	if h.ctrl.Remaining() != 12 {
		t.Errorf("Expected 12 seconds left, got %d", h.ctrl.Remaining())
	}
	if len(h.ticks) != 3 || h.ticks[2] != 12 {
		t.Errorf("Unexpected ticks: %v", h.ticks)
	}
}

func TestController_DefaultTimeLimit(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(update(protocol.PhasePlaying))

	if h.ctrl.Remaining() != DefaultTimeLimit {
		t.Errorf("Expected default countdown %d, got %d", DefaultTimeLimit, h.ctrl.Remaining())
	}
}

func TestController_ForceEndOnce(t *testing.T) {
	h := newHarness(t, "user_mod")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_mod"),
		TimeLimit:   protocol.Some(2),
	})

	h.advance(t, time.Second)
	if len(h.emitted) != 0 {
		t.Fatalf("Emitted too early: %v", h.emitted)
	}
	h.advance(t, time.Second)

	if h.ctrl.Remaining() != 0 {
		t.Errorf("Expected countdown at zero, got %d", h.ctrl.Remaining())
	}
	for i := 0; i < 5; i++ {
		h.ctrl.Tick()
	}
	if len(h.emitted) != 1 || h.emitted[0] != protocol.ActionForceEndRound {
		t.Errorf("Expected exactly one FORCE_END_ROUND, got %v", h.emitted)
	}

	h.clock.Advance(5 * time.Second)
	h.expectIdle(t)
}

func TestController_GuestNeverForcesEnd(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_xyz"),
		TimeLimit:   protocol.Some(1),
	})

	h.advance(t, time.Second)
	h.ctrl.Tick()

	if len(h.emitted) != 0 {
		t.Errorf("Guest emitted %v", h.emitted)
	}
}

func TestController_ApplyIsIdempotent(t *testing.T) {
	h := newHarness(t, "user_abc")
	u := protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_xyz"),
		Letter:      protocol.Some("M"),
		TimeLimit:   protocol.Some(30),
	}

	h.ctrl.Apply(u)
	h.advance(t, time.Second)

	if h.ctrl.Apply(u) {
		t.Error("Second apply reported a phase change")
	}
	if h.ctrl.Remaining() != 29 {
		t.Errorf("Countdown restarted: %d", h.ctrl.Remaining())
	}
	if h.ctrl.Round() != 1 {
		t.Errorf("Round counter moved: %d", h.ctrl.Round())
	}
}

func TestController_ResyncReseedsSameRound(t *testing.T) {
	h := newHarness(t, "user_mod")
	u := protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_mod"),
		TimeLimit:   protocol.Some(2),
	}
	h.ctrl.Apply(u)
	h.advance(t, time.Second)
	h.advance(t, time.Second)
	if len(h.emitted) != 1 {
		t.Fatalf("Expected one FORCE_END_ROUND before resync, got %v", h.emitted)
	}

	h.ctrl.Resync()
	h.clock.Advance(5 * time.Second)
	h.expectIdle(t)

	if h.ctrl.Apply(u) {
		t.Error("Resync of the same phase reported a phase change")
	}
	if h.ctrl.Remaining() != 2 {
		t.Errorf("Expected countdown reseeded to 2, got %d", h.ctrl.Remaining())
	}
	if h.ctrl.Round() != 1 {
		t.Errorf("Resync counted a new round: %d", h.ctrl.Round())
	}

	h.advance(t, time.Second)
	h.advance(t, time.Second)
	if len(h.emitted) != 2 || h.emitted[1] != protocol.ActionForceEndRound {
		t.Errorf("Expected FORCE_END_ROUND again after resync, got %v", h.emitted)
	}

	// Only the first update after a resync re-enters the phase
	h.ctrl.Apply(u)
	if h.ctrl.Remaining() != 0 {
		t.Errorf("Countdown restarted without a resync: %d", h.ctrl.Remaining())
	}
}

func TestController_ResyncTakesSubmittedFromServer(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_xyz"),
	})
	h.ctrl.MarkSubmitted()

	h.ctrl.Resync()
	h.ctrl.Apply(protocol.GameStateUpdate{State: protocol.PhasePlaying, Answers: protocol.Some([]protocol.Answer{})})
	if h.ctrl.Submitted() {
		t.Error("Answer never reached the server, submitted should clear")
	}

	h.ctrl.MarkSubmitted()
	h.ctrl.Resync()
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:   protocol.PhasePlaying,
		Answers: protocol.Some([]protocol.Answer{{ClientID: "user_abc", Answer: "MANGO"}}),
	})
	if !h.ctrl.Submitted() {
		t.Error("Server lists our answer, submitted should hold")
	}
}

func TestController_ShallowMerge(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePreparing,
		ModeratorID: protocol.Some("user_xyz"),
		Letter:      protocol.Some("M"),
		Category:    protocol.Some("Frutas"),
	})

	h.ctrl.Apply(protocol.GameStateUpdate{
		State:   protocol.PhaseEvaluating,
		Answers: protocol.Some([]protocol.Answer{{ClientID: "user_abc", Nickname: "Eugenia", Answer: "MANGO"}}),
	})

	f := h.ctrl.Fields()
	if f.ModeratorID != "user_xyz" || f.Letter != "M" || f.Category != "Frutas" {
		t.Errorf("Absent fields were not kept: %+v", f)
	}
	if len(f.Answers) != 1 {
		t.Errorf("Expected one answer, got %d", len(f.Answers))
	}

	h.ctrl.Apply(protocol.GameStateUpdate{
		State:  protocol.PhasePreparing,
		Letter: protocol.Optional[string]{Set: true},
	})
	if h.ctrl.Fields().Letter != "" {
		t.Error("Explicit null should clear the letter")
	}
}

func TestController_LobbyClearsRound(t *testing.T) {
	h := newHarness(t, "user_abc")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:       protocol.PhasePlaying,
		ModeratorID: protocol.Some("user_abc"),
		Letter:      protocol.Some("M"),
	})

	if !h.ctrl.Apply(update(protocol.PhaseLobby)) {
		t.Error("Expected phase change to LOBBY")
	}
	if h.ctrl.Fields().Letter != "" || h.ctrl.IsModerator() {
		t.Errorf("Round data survived LOBBY: %+v", h.ctrl.Fields())
	}
	if _, ok := h.ctrl.View().(LobbyView); !ok {
		t.Errorf("Expected LobbyView, got %T", h.ctrl.View())
	}

	h.clock.Advance(2 * time.Second)
	h.expectIdle(t)
}

func TestController_NewRoundResetsGuards(t *testing.T) {
	h := newHarness(t, "user_abc")
	playing := protocol.GameStateUpdate{State: protocol.PhasePlaying, ModeratorID: protocol.Some("user_xyz")}

	h.ctrl.Apply(playing)
	h.ctrl.MarkSubmitted()
	if err := h.ctrl.Check(protocol.ActionSubmitAnswer, false); !errors.Is(err, ErrIllegalAction) {
		t.Errorf("Second answer should be refused, got %v", err)
	}

	h.ctrl.Apply(update(protocol.PhaseEvaluating))
	h.ctrl.Apply(update(protocol.PhasePreparing))
	h.ctrl.Apply(playing)

	if h.ctrl.Submitted() {
		t.Error("Submitted flag carried into the next round")
	}
	if h.ctrl.Round() != 2 {
		t.Errorf("Expected round 2, got %d", h.ctrl.Round())
	}
}

func TestController_SpinDelay(t *testing.T) {
	h := newHarness(t, "user_mod")
	h.ctrl.Apply(protocol.GameStateUpdate{State: protocol.PhasePreparing, ModeratorID: protocol.Some("user_mod")})

	if err := h.ctrl.RequestSpin(); err != nil {
		t.Fatalf("RequestSpin failed: %v", err)
	}
	if !h.ctrl.Spinning() {
		t.Error("Expected spinning")
	}
	if err := h.ctrl.RequestSpin(); !errors.Is(err, ErrIllegalAction) {
		t.Errorf("Double spin should be refused, got %v", err)
	}

	h.clock.Advance(time.Second)
	h.expectIdle(t)
	if len(h.emitted) != 0 {
		t.Fatalf("SPIN emitted before the delay: %v", h.emitted)
	}

	h.advance(t, time.Second)
	if len(h.emitted) != 1 || h.emitted[0] != protocol.ActionSpin {
		t.Errorf("Expected SPIN, got %v", h.emitted)
	}

	h.ctrl.Apply(protocol.GameStateUpdate{State: protocol.PhasePreparing, Letter: protocol.Some("M"), Category: protocol.Some("Frutas")})
	if h.ctrl.Spinning() {
		t.Error("Spinning should clear once the letter arrives")
	}
	if err := h.ctrl.Check(protocol.ActionStartRound, false); err != nil {
		t.Errorf("Moderator should start the round: %v", err)
	}
}

func TestController_SpinCancelledOnPhaseExit(t *testing.T) {
	h := newHarness(t, "user_mod")
	h.ctrl.Apply(protocol.GameStateUpdate{State: protocol.PhasePreparing, ModeratorID: protocol.Some("user_mod")})
	if err := h.ctrl.RequestSpin(); err != nil {
		t.Fatalf("RequestSpin failed: %v", err)
	}

	h.ctrl.Apply(update(protocol.PhaseLobby))
	h.clock.Advance(2 * time.Second)

	select {
	case fn := <-h.posted:
		fn()
	case <-time.After(50 * time.Millisecond):
	}
	if len(h.emitted) != 0 {
		t.Errorf("Cancelled spin still emitted %v", h.emitted)
	}
}

func TestController_SpinFailureClearsFlag(t *testing.T) {
	h := newHarness(t, "user_mod")
	h.ctrl.opts.Emit = func(protocol.Action, any) error { return errors.New("offline") }
	h.ctrl.Apply(protocol.GameStateUpdate{State: protocol.PhasePreparing, ModeratorID: protocol.Some("user_mod")})

	if err := h.ctrl.RequestSpin(); err != nil {
		t.Fatalf("RequestSpin failed: %v", err)
	}
	h.advance(t, DefaultSpinDelay)

	if h.ctrl.Spinning() {
		t.Error("Spinning should clear when SPIN cannot be sent")
	}
}

func TestController_Check(t *testing.T) {
	const me = "user_me"

	tests := []struct {
		name   string
		phase  protocol.Phase
		mod    string
		letter string
		host   bool
		action protocol.Action
		ok     bool
	}{
		{"host starts", protocol.PhaseLobby, "", "", true, protocol.ActionStartGame, true},
		{"guest cannot start", protocol.PhaseLobby, "", "", false, protocol.ActionStartGame, false},
		{"start outside lobby", protocol.PhaseScores, me, "", true, protocol.ActionStartGame, false},
		{"moderator spins", protocol.PhasePreparing, me, "", false, protocol.ActionSpin, true},
		{"spin after letter", protocol.PhasePreparing, me, "M", false, protocol.ActionSpin, false},
		{"guest spin", protocol.PhasePreparing, "user_other", "", true, protocol.ActionSpin, false},
		{"start round needs letter", protocol.PhasePreparing, me, "", false, protocol.ActionStartRound, false},
		{"start round", protocol.PhasePreparing, me, "M", false, protocol.ActionStartRound, true},
		{"moderator cannot answer", protocol.PhasePlaying, me, "M", false, protocol.ActionSubmitAnswer, false},
		{"guest answers", protocol.PhasePlaying, "user_other", "M", false, protocol.ActionSubmitAnswer, true},
		{"moderator force ends", protocol.PhasePlaying, me, "M", false, protocol.ActionForceEndRound, true},
		{"select winner", protocol.PhaseEvaluating, me, "M", false, protocol.ActionSelectWinner, true},
		{"guest select winner", protocol.PhaseEvaluating, "user_other", "M", true, protocol.ActionSelectWinner, false},
		{"restart round", protocol.PhaseEvaluating, me, "M", false, protocol.ActionRestartRound, true},
		{"end game from evaluating", protocol.PhaseEvaluating, me, "M", false, protocol.ActionEndGame, true},
		{"end game from scores", protocol.PhaseScores, me, "", false, protocol.ActionEndGame, true},
		{"continue", protocol.PhaseScores, me, "", false, protocol.ActionContinueGame, true},
		{"continue while evaluating", protocol.PhaseEvaluating, me, "", false, protocol.ActionContinueGame, false},
		{"host returns to lobby", protocol.PhaseFinalScores, me, "", true, protocol.ActionReturnToLobby, true},
		{"moderator is not host", protocol.PhaseFinalScores, me, "", false, protocol.ActionReturnToLobby, false},
		{"leave always", protocol.PhasePlaying, "user_other", "M", false, protocol.ActionLeaveRoom, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, me)
			if tt.phase != protocol.PhaseLobby {
				h.ctrl.Apply(protocol.GameStateUpdate{
					State:       tt.phase,
					ModeratorID: protocol.Some(tt.mod),
					Letter:      protocol.Some(tt.letter),
				})
			}

			err := h.ctrl.Check(tt.action, tt.host)
			if tt.ok && err != nil {
				t.Errorf("Expected %s to be allowed, got %v", tt.action, err)
			}
			if !tt.ok && !errors.Is(err, ErrIllegalAction) {
				t.Errorf("Expected ErrIllegalAction for %s, got %v", tt.action, err)
			}
		})
	}
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"  mango ", "mango", nil},
		{"   ", "", ErrEmptyAnswer},
		{"abcdefghijklmnopqrstuvwxyz0123", "abcdefghijklmnopqrstuvwxy", nil},
		{"ñandú", "ñandú", nil},
	}

	for _, tt := range tests {
		got, err := NormalizeAnswer(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("NormalizeAnswer(%q) error = %v, want %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("NormalizeAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateTimeLimit(t *testing.T) {
	for _, ok := range TimeLimitOptions {
		if err := ValidateTimeLimit(ok); err != nil {
			t.Errorf("Expected %d to be valid: %v", ok, err)
		}
	}
	for _, bad := range []int{0, -1, 20, 600} {
		if err := ValidateTimeLimit(bad); !errors.Is(err, ErrInvalidTimeLimit) {
			t.Errorf("Expected %d to be rejected, got %v", bad, err)
		}
	}
}

func TestController_ValidateWinner(t *testing.T) {
	h := newHarness(t, "user_mod")
	h.ctrl.Apply(protocol.GameStateUpdate{
		State:   protocol.PhaseEvaluating,
		Answers: protocol.Some([]protocol.Answer{{ClientID: "user_a", Answer: "MANGO"}}),
	})

	if err := h.ctrl.ValidateWinner("user_a"); err != nil {
		t.Errorf("Expected user_a to be a valid winner: %v", err)
	}
	if err := h.ctrl.ValidateWinner("user_b"); !errors.Is(err, ErrUnknownWinner) {
		t.Errorf("Expected ErrUnknownWinner, got %v", err)
	}
}

func TestModeratorName(t *testing.T) {
	players := []protocol.Player{{ID: "user_a", Nickname: "Ana"}}

	if got := ModeratorName("user_a", players); got != "Ana" {
		t.Errorf("Expected Ana, got %s", got)
	}
	if got := ModeratorName("user_gone", players); got != FallbackModeratorName {
		t.Errorf("Expected fallback, got %s", got)
	}
}
