package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_IgnoresScheduling(t *testing.T) {
	a := NewResult("s")
	a.Trace = []TraceEvent{
		{Seq: 1, Kind: EventDispatch, Action: "LOAD", DispatchID: "d-1"},
		{Seq: 2, Kind: EventSagaFinish, Saga: "slow", Action: "LOAD", Outcome: "ok"},
		{Seq: 3, Kind: EventSagaFinish, Saga: "fast", Action: "LOAD", Outcome: "ok"},
		{Seq: 4, Kind: EventSaga, Saga: "audit", Action: "LOAD"},
	}
	a.State = map[string]int64{"LOAD": 1}
	a.Quiescent = true

	b := NewResult("s")
	b.Trace = []TraceEvent{
		{Seq: 9, Kind: EventSaga, Saga: "audit", Action: "LOAD"},
		{Seq: 10, Kind: EventSagaFinish, Saga: "fast", Action: "LOAD", Outcome: "ok"},
		{Seq: 11, Kind: EventDispatch, Action: "LOAD", DispatchID: "d-7"},
		{Seq: 12, Kind: EventSagaFinish, Saga: "slow", Action: "LOAD", Outcome: "ok"},
	}
	b.State = map[string]int64{"LOAD": 1}
	b.Quiescent = true

	sa, err := NewSnapshot(a).Canonical()
	require.NoError(t, err)
	sb, err := NewSnapshot(b).Canonical()
	require.NoError(t, err)

	assert.Equal(t, string(sa), string(sb))
	assert.Equal(t,
		`{"pass":true,"quiescent":true,"runs":["fast LOAD ok","slow LOAD ok"],"scenario":"s","state":{"LOAD":1},"sync":["audit LOAD"]}`+"\n",
		string(sa))
}

func TestNewSnapshot_Empty(t *testing.T) {
	data, err := NewSnapshot(NewResult("empty")).Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{"pass":true,"quiescent":false,"runs":[],"scenario":"empty","state":{},"sync":[]}`+"\n", string(data))
}

func TestAssertGolden_FromResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	result, err := Run(ctx, loadTestdata(t, "sync_order"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "sync_order", result))
}
