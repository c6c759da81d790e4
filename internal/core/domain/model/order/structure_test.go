package order_test

import (
	"testing"

	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/core/domain/model/order"
	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_FourthStopAddedDuringExecution(t *testing.T) {
	o := newOrder(t, waypoints(t, "g", 3))
	_, scope := assigned(t, o)
	step := o.Steps()[0]
	stops := o.DriverExecutionList()
	require.Len(t, stops, 3)

	runStop(t, o, stops[0])
	runStop(t, o, stops[1])
	_, err := o.ArriveAtStop(stops[2].ID(), t0)
	require.NoError(t, err)

	after := stops[1].ID()
	err = o.ApplyStructuralEdit([]order.Edit{order.AddStop{
		StepID:      step.ID(),
		AfterStopID: &after,
		Waypoint:    order.Waypoint{Kind: order.Delivery, Address: "new", Point: mustPoint(t, 48.9, 2.4)},
	}}, scope, order.ProofPolicy{}, t0)
	require.NoError(t, err)

	var added *order.Stop
	for _, s := range o.Steps()[0].Stops() {
		if s.Address() == "new" {
			added = s
		}
	}
	require.NotNil(t, added)
	assert.True(t, added.Revision().IsPendingChange())
	assert.Equal(t, order.PendingAddition, added.Revision().Kind())
	assert.True(t, o.HasPendingChanges())
	assert.Len(t, o.DriverExecutionList(), 3, "pending rows stay invisible to the driver")

	_, err = o.MergeCheckpoint(t0)
	assert.ErrorIs(t, err, errs.ErrInvariantViolation, "stop 3 is ARRIVED")

	out, err := o.CompleteStop(stops[2].ID(), t0)
	require.NoError(t, err)

	assert.True(t, out.Merge.Changed)
	assert.False(t, out.OrderFinished)
	assert.False(t, o.HasPendingChanges())
	assert.Equal(t, order.Canonical, added.Revision().Kind())
	list := o.DriverExecutionList()
	require.Len(t, list, 4)
	assert.Equal(t, order.InProgress, o.Status())
	assert.Equal(t, order.StopPending, added.Status())
}

func TestOrder_MergeCheckpointIsIdempotent(t *testing.T) {
	o := newOrder(t, waypoints(t, "g", 2))
	_, scope := assigned(t, o)
	target := o.DriverExecutionList()[1]
	addr := "moved"

	require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
		order.UpdateStop{StopID: target.ID(), Changes: order.StopChanges{Address: &addr}},
		order.AddStep{Waypoints: waypoints(t, "x", 1)},
	}, scope, order.ProofPolicy{}, t0))
	versionBefore := o.StructureVersion()

	first, err := o.MergeCheckpoint(t0)
	require.NoError(t, err)
	second, err := o.MergeCheckpoint(t0)
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.Len(t, first.AddedSteps, 1)
	assert.False(t, second.Changed)
	assert.Equal(t, versionBefore+1, o.StructureVersion())

	list := o.DriverExecutionList()
	require.Len(t, list, 3)
	assert.Equal(t, "moved", list[1].Address())
	for _, s := range list {
		assert.Equal(t, order.Canonical, s.Revision().Kind())
	}
}

func TestOrder_ApplyStructuralEdit(t *testing.T) {
	policy := order.ProofPolicy{}

	t.Run("edits apply in place without an active mission", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 2))
		s := o.DriverExecutionList()[0]
		addr := "rue de Rivoli"

		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.UpdateStop{StopID: s.ID(), Changes: order.StopChanges{Address: &addr}},
		}, nil, policy, t0))

		assert.Equal(t, addr, s.Address())
		assert.False(t, o.HasPendingChanges())
		assert.Equal(t, int64(2), o.StructureVersion())
	})

	t.Run("governed stop update creates one shadow copy", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 2))
		_, scope := assigned(t, o)
		original := o.DriverExecutionList()[1]
		first, second := "first", "second"

		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.UpdateStop{StopID: original.ID(), Changes: order.StopChanges{Address: &first}},
		}, scope, policy, t0))
		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.UpdateStop{StopID: original.ID(), Changes: order.StopChanges{Address: &second}},
		}, scope, policy, t0))

		stops := o.Steps()[0].Stops()
		require.Len(t, stops, 3, "original, one replacement")
		replacement := stops[2]
		assert.Equal(t, order.PendingReplacement, replacement.Revision().Kind())
		require.NotNil(t, replacement.Revision().OriginalID())
		assert.True(t, replacement.Revision().OriginalID().IsEqual(original.ID()))
		assert.Equal(t, "second", replacement.Address())
		assert.Equal(t, order.PendingDeletion, original.Revision().Kind())
		assert.Equal(t, "stop", original.Address())

		driver := o.VirtualState(route.DriverView, nil)
		client := o.VirtualState(route.ClientView, nil)
		assert.Equal(t, "stop", driver.Stops[1].Address)
		assert.Equal(t, "second", client.Stops[1].Address)
		assert.Len(t, client.Stops, 2)
	})

	t.Run("arrived stop and its actions cannot be edited", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 2))
		_, scope := assigned(t, o)
		s := o.DriverExecutionList()[0]
		_, err := o.ArriveAtStop(s.ID(), t0)
		require.NoError(t, err)
		addr := "x"

		err = o.ApplyStructuralEdit([]order.Edit{
			order.UpdateStop{StopID: s.ID(), Changes: order.StopChanges{Address: &addr}},
		}, scope, policy, t0)
		assert.ErrorIs(t, err, errs.ErrInvariantViolation)

		err = o.ApplyStructuralEdit([]order.Edit{
			order.UpdateAction{ActionID: s.Actions()[0].ID(), Description: "x"},
		}, scope, policy, t0)
		assert.ErrorIs(t, err, errs.ErrInvariantViolation)

		err = o.ApplyStructuralEdit([]order.Edit{
			order.AddAction{StopID: s.ID(), Kind: order.Service},
		}, scope, policy, t0)
		assert.ErrorIs(t, err, errs.ErrInvariantViolation)
	})

	t.Run("completed stop cannot be edited or removed", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 2))
		_, scope := assigned(t, o)
		s := o.DriverExecutionList()[0]
		runStop(t, o, s)

		err := o.ApplyStructuralEdit([]order.Edit{order.RemoveStop{StopID: s.ID()}}, scope, policy, t0)

		assert.ErrorIs(t, err, errs.ErrInvariantViolation)
	})

	t.Run("governed removal keeps the stop visible until merge", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 3))
		_, scope := assigned(t, o)
		s := o.DriverExecutionList()[2]

		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{order.RemoveStop{StopID: s.ID()}}, scope, policy, t0))

		assert.True(t, s.Revision().IsDeleteRequired())
		assert.Len(t, o.DriverExecutionList(), 3)
		assert.Len(t, o.VirtualState(route.ClientView, nil).Stops, 2)

		res, err := o.MergeCheckpoint(t0)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Len(t, o.DriverExecutionList(), 2)
	})

	t.Run("replaced step re-parents its stops on merge", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 2))
		_, scope := assigned(t, o)
		step := o.Steps()[0]

		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.UpdateStep{StepID: step.ID(), Linked: true},
		}, scope, policy, t0))
		require.Len(t, o.Steps(), 2)

		res, err := o.MergeCheckpoint(t0)
		require.NoError(t, err)

		steps := o.Steps()
		require.Len(t, steps, 1)
		assert.True(t, steps[0].Linked())
		assert.True(t, res.ReplacedSteps[step.ID()].IsEqual(steps[0].ID()))
		for _, s := range steps[0].Stops() {
			assert.True(t, s.StepID().IsEqual(steps[0].ID()))
		}
	})

	t.Run("removing a pending addition drops it at once", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 1))
		_, scope := assigned(t, o)
		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.AddStep{Waypoints: waypoints(t, "x", 1)},
		}, scope, policy, t0))
		added := o.Steps()[1]

		require.NoError(t, o.ApplyStructuralEdit([]order.Edit{
			order.RemoveStep{StepID: added.ID()},
		}, scope, policy, t0))

		assert.Len(t, o.Steps(), 1)
		assert.False(t, o.HasPendingChanges())
	})

	t.Run("unknown targets are not found", func(t *testing.T) {
		o := newOrder(t, waypoints(t, "g", 1))

		err := o.ApplyStructuralEdit([]order.Edit{order.RemoveStop{StopID: kernel.NewUUID()}}, nil, policy, t0)

		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
		assert.Contains(t, err.Error(), "RemoveStop")
	})
}

func TestOrder_ApplyPlan(t *testing.T) {
	o := newOrder(t, waypoints(t, "g", 3))
	list := o.DriverExecutionList()
	plan := route.Plan{
		Sequence: []route.SequencedStop{
			{StopID: list[2].ID(), Position: 1},
			{StopID: list[0].ID(), Position: 2},
			{StopID: list[1].ID(), Position: 3},
		},
		DurationSeconds: 600,
		DistanceMeters:  4200,
	}

	t.Run("stale plans are discarded", func(t *testing.T) {
		err := o.ApplyPlan(route.DriverView, plan, o.StructureVersion()-1, t0)

		assert.ErrorIs(t, err, order.ErrStalePlan)
		assert.Nil(t, list[0].ExecutionOrder())
	})

	t.Run("driver plan writes execution order and ETA", func(t *testing.T) {
		require.NoError(t, o.ApplyPlan(route.DriverView, plan, o.StructureVersion(), t0))

		ordered := o.DriverExecutionList()
		assert.True(t, ordered[0].ID().IsEqual(list[2].ID()))
		assert.True(t, ordered[1].ID().IsEqual(list[0].ID()))
		require.NotNil(t, ordered[0].ExecutionOrder())
		assert.Equal(t, 1, *ordered[0].ExecutionOrder())
		assert.Equal(t, 600, o.ETA().DurationSeconds)
		require.NotNil(t, o.ETA().ArrivalAt)
	})
}

func TestRevisionFromColumns(t *testing.T) {
	id := kernel.NewUUID()

	r, err := order.RevisionFromColumns(&id, true, false)
	require.NoError(t, err)
	assert.Equal(t, order.PendingReplacement, r.Kind())

	r, err = order.RevisionFromColumns(nil, false, true)
	require.NoError(t, err)
	assert.True(t, r.VisibleToDriver())
	assert.False(t, r.VisibleToClient())

	_, err = order.RevisionFromColumns(nil, true, true)
	assert.ErrorIs(t, err, errs.ErrDataCorruption)

	_, err = order.RevisionFromColumns(&id, false, false)
	assert.ErrorIs(t, err, errs.ErrDataCorruption)
}
