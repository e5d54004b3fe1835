package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Guard_RunsActionWhenArmed(t *testing.T) {
	ran := false
	g := New(func() error {
		ran = true
		return nil
	}, nil)
	g.Run()
	require.True(t, ran)
}

func Test_Guard_DisarmPreventsAction(t *testing.T) {
	ran := false
	g := New(func() error {
		ran = true
		return nil
	}, nil)
	g.Disarm()
	g.Run()
	require.False(t, ran)
}

func Test_Guard_RunsOnlyOnce(t *testing.T) {
	count := 0
	g := New(func() error {
		count++
		return nil
	}, nil)
	g.Run()
	g.Run()
	require.Equal(t, 1, count)
}

func Test_Guard_OnFailCalledOnError(t *testing.T) {
	var captured error
	g := New(func() error {
		return errors.New("boom")
	}, func(err error) {
		captured = err
	})
	g.Run()
	require.EqualError(t, captured, "boom")
}

func Test_Disarmed_StartsDisarmed(t *testing.T) {
	ran := false
	g := Disarmed()
	require.False(t, g.Armed())
	g.Arm(func() error {
		ran = true
		return nil
	})
	require.True(t, g.Armed())
	g.Run()
	require.True(t, ran)
}

func Test_Guard_ArmReplacesAction(t *testing.T) {
	calledFirst := false
	calledSecond := false
	g := Disarmed()
	g.Arm(func() error {
		calledFirst = true
		return nil
	})
	g.Arm(func() error {
		calledSecond = true
		return nil
	})
	g.Run()
	require.False(t, calledFirst)
	require.True(t, calledSecond)
}
