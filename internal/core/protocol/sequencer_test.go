package protocol_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/internal/core/protocol"
)

func TestSequencerRunsStepsInOrder(t *testing.T) {
	t.Parallel()

	calls := []string{}
	steps := []protocol.Step{
		completingStep("first", &calls),
		completingStep("second", &calls),
		completingStep("third", &calls),
	}

	seq := protocol.NewSequencer(newTestRuntime(t), steps)
	require.NoError(t, seq.Run(context.Background()))

	require.Equal(t, []string{"first", "second", "third"}, calls)
	require.True(t, seq.Completed())
	require.Equal(t, 3, seq.Position())
}

func TestSequencerSuspendAndResume(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{
		completingStep("first", &calls),
		suspendingStep("second", protocol.MsgTypeEscrowSetup, &calls),
		completingStep("third", &calls),
	}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))

	require.True(t, seq.Suspended())
	require.False(t, seq.Completed())
	awaiting, timeout := seq.Awaiting()
	require.Equal(t, protocol.MsgTypeEscrowSetup, awaiting)
	require.Equal(t, time.Minute, timeout)
	// the suspended step has not advanced the sequence.
	require.Equal(t, []string{"first", "second"}, calls)

	msg := protocol.NewEscrowSetupMessage(
		rt.Trade.Id, randomPubKey(t), "bcrt1qaddress0",
	)
	require.NoError(t, seq.HandleMessage(context.Background(), msg))

	require.True(t, seq.Completed())
	require.Equal(t, []string{"first", "second", "second:resume", "third"}, calls)
}

func TestSequencerFailsOnUnexpectedMessageType(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{
		suspendingStep("first", protocol.MsgTypeEscrowSetup, &calls),
		completingStep("second", &calls),
	}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))
	require.True(t, seq.Suspended())

	msg := protocol.NewPayoutSignatureMessage(rt.Trade.Id, randomBytes(t, 72))
	err := seq.HandleMessage(context.Background(), msg)

	require.Error(t, err)
	require.Equal(t, domain.KindPeerProtocol, domain.KindOf(err))
	require.Equal(t, domain.PhaseError, rt.Trade.Phase)
	require.False(t, seq.Completed())
	// the remaining steps never execute.
	require.Equal(t, []string{"first"}, calls)
	require.NoError(t, seq.Run(context.Background()))
	require.Equal(t, []string{"first"}, calls)
}

func TestSequencerFailsOnMessageWhileNotSuspended(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{completingStep("first", &calls)}

	seq := protocol.NewSequencer(rt, steps)

	msg := protocol.NewEscrowSetupMessage(
		rt.Trade.Id, randomPubKey(t), "bcrt1qaddress0",
	)
	err := seq.HandleMessage(context.Background(), msg)

	require.Error(t, err)
	require.Equal(t, domain.KindPeerProtocol, domain.KindOf(err))
	require.Equal(t, domain.PhaseError, rt.Trade.Phase)
}

func TestSequencerIgnoresMessagesAfterCompletion(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{completingStep("first", &calls)}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))
	require.True(t, seq.Completed())

	msg := protocol.NewEscrowSetupMessage(
		rt.Trade.Id, randomPubKey(t), "bcrt1qaddress0",
	)
	require.NoError(t, seq.HandleMessage(context.Background(), msg))
	require.True(t, seq.Completed())
	require.Equal(t, domain.PhaseNegotiated, rt.Trade.Phase)
}

func TestSequencerHookShortCircuitsSteps(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	hooked := []string{}
	rt.Hook = func(step protocol.Step, _ *protocol.Runtime) (protocol.Outcome, bool) {
		hooked = append(hooked, step.Name())
		return protocol.Completed(), true
	}

	steps := []protocol.Step{
		completingStep("first", &calls),
		completingStep("second", &calls),
	}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))

	require.True(t, seq.Completed())
	require.Empty(t, calls)
	require.Equal(t, []string{"first", "second"}, hooked)
}

func TestSequencerDefaultTimeoutPolicy(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{
		suspendingStep("first", protocol.MsgTypeEscrowSetup, &calls),
		completingStep("second", &calls),
	}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))
	require.True(t, seq.Suspended())

	err := seq.HandleTimeout(context.Background())
	require.Error(t, err)
	require.Equal(t, domain.KindPeerTimeout, domain.KindOf(err))
	require.Equal(t, domain.PhaseError, rt.Trade.Phase)
	require.Equal(t, []string{"first"}, calls)
}

func TestSequencerCustomTimeoutPolicy(t *testing.T) {
	t.Parallel()

	rt := newTestRuntime(t)
	calls := []string{}
	steps := []protocol.Step{
		timeoutTolerantStep("first", protocol.MsgTypeEscrowSetup, &calls),
		completingStep("second", &calls),
	}

	seq := protocol.NewSequencer(rt, steps)
	require.NoError(t, seq.Run(context.Background()))
	require.True(t, seq.Suspended())

	require.NoError(t, seq.HandleTimeout(context.Background()))
	require.True(t, seq.Completed())
	require.Equal(t, []string{"first", "first:timeout", "second"}, calls)
}

func TestSequencerResumesAtPosition(t *testing.T) {
	t.Parallel()

	calls := []string{}
	steps := []protocol.Step{
		completingStep("first", &calls),
		completingStep("second", &calls),
		completingStep("third", &calls),
	}

	seq := protocol.NewSequencerAt(newTestRuntime(t), steps, 2)
	require.NoError(t, seq.Run(context.Background()))

	require.True(t, seq.Completed())
	require.Equal(t, []string{"third"}, calls)
}

func TestSequencersAreIndependentPerTrade(t *testing.T) {
	t.Parallel()

	rt1, rt2 := newTestRuntime(t), newTestRuntime(t)
	calls1, calls2 := []string{}, []string{}

	seq1 := protocol.NewSequencer(rt1, []protocol.Step{
		suspendingStep("await", protocol.MsgTypeEscrowSetup, &calls1),
	})
	seq2 := protocol.NewSequencer(rt2, []protocol.Step{
		completingStep("done", &calls2),
	})

	require.NoError(t, seq1.Run(context.Background()))
	require.NoError(t, seq2.Run(context.Background()))

	require.True(t, seq1.Suspended())
	require.True(t, seq2.Completed())
	require.Equal(t, domain.PhaseNegotiated, rt1.Trade.Phase)
	require.Equal(t, domain.PhaseNegotiated, rt2.Trade.Phase)
}

/*
 * fake steps
 */

type fakeStep struct {
	name    string
	outcome protocol.Outcome
	calls   *[]string
}

func (s fakeStep) Name() string { return s.name }

func (s fakeStep) Run(_ context.Context, _ *protocol.Runtime) protocol.Outcome {
	*s.calls = append(*s.calls, s.name)
	return s.outcome
}

type fakeResumableStep struct {
	fakeStep
}

func (s fakeResumableStep) Resume(
	_ context.Context, _ *protocol.Runtime, _ ports.TradeMessage,
) protocol.Outcome {
	*s.calls = append(*s.calls, s.name+":resume")
	return protocol.Completed()
}

type fakeTimeoutStep struct {
	fakeResumableStep
}

func (s fakeTimeoutStep) OnTimeout(
	_ context.Context, _ *protocol.Runtime,
) protocol.Outcome {
	*s.calls = append(*s.calls, s.name+":timeout")
	return protocol.Completed()
}

func completingStep(name string, calls *[]string) protocol.Step {
	return fakeStep{name: name, outcome: protocol.Completed(), calls: calls}
}

func suspendingStep(name, awaiting string, calls *[]string) protocol.Step {
	return fakeResumableStep{fakeStep{
		name:    name,
		outcome: protocol.Suspended(awaiting, time.Minute),
		calls:   calls,
	}}
}

func timeoutTolerantStep(name, awaiting string, calls *[]string) protocol.Step {
	return fakeTimeoutStep{fakeResumableStep{fakeStep{
		name:    name,
		outcome: protocol.Suspended(awaiting, time.Minute),
		calls:   calls,
	}}}
}

/*
 * helpers
 */

func newTestOffer(t *testing.T) domain.Offer {
	t.Helper()
	return domain.Offer{
		Id:                    "offer-1",
		TradeAmount:           100000,
		BuyerSecurityDeposit:  15000,
		SellerSecurityDeposit: 15000,
		ArbitratorPubKey:      randomPubKey(t),
	}
}

func newTestRuntime(t *testing.T) *protocol.Runtime {
	t.Helper()
	trade, err := domain.NewTrade(newTestOffer(t), domain.RoleBuyer, "peer-1")
	require.NoError(t, err)
	return &protocol.Runtime{Trade: trade}
}

func randomPubKey(t *testing.T) []byte {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return key.PubKey().SerializeCompressed()
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf
}
