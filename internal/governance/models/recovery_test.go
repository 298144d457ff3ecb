package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "govnet/pkg/domain"
)

type RecoveryTimelockSuite struct {
	suite.Suite
	manager  id.Address
	stranger id.Address
	t0       time.Time
	lock     RecoveryTimelock
}

func TestRecoveryTimelockSuite(t *testing.T) {
	suite.Run(t, new(RecoveryTimelockSuite))
}

func (s *RecoveryTimelockSuite) SetupTest() {
	s.manager = id.MustParseAddress("0xa11ce")
	s.stranger = id.MustParseAddress("0xbad")
	s.t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lock, err := NewRecoveryTimelock(s.manager, 10*time.Second, PolicyRearm)
	s.Require().NoError(err)
	s.lock = lock
}

func (s *RecoveryTimelockSuite) TestNew() {
	s.Run("zero manager is rejected", func() {
		_, err := NewRecoveryTimelock(id.ZeroAddress, time.Second, PolicyRearm)
		s.ErrorIs(err, ErrInvalidAddress)
	})

	s.Run("empty policy defaults to rearm", func() {
		lock, err := NewRecoveryTimelock(s.manager, time.Second, "")
		s.Require().NoError(err)
		s.Equal(PolicyRearm, lock.Policy)
		s.Equal(RecoveryIdle, lock.Status)
	})
}

func (s *RecoveryTimelockSuite) TestInitiate() {
	s.Run("only the manager can arm", func() {
		s.ErrorIs(s.lock.Initiate(s.stranger, s.t0), ErrUnauthorized)
		s.Equal(RecoveryIdle, s.lock.Status)
	})

	s.Run("manager arms and a second arm is refused", func() {
		s.Require().NoError(s.lock.Initiate(s.manager, s.t0))
		s.Equal(RecoveryPending, s.lock.Status)
		s.Equal(s.t0, *s.lock.ActiveSince)

		s.ErrorIs(s.lock.Initiate(s.manager, s.t0.Add(time.Second)), ErrRecoveryAlreadyPending)
	})
}

func (s *RecoveryTimelockSuite) TestExecuteBoundary() {
	s.Require().NoError(s.lock.Initiate(s.manager, s.t0))

	s.Run("strictly before the delay fails", func() {
		s.ErrorIs(s.lock.Execute(s.manager, s.t0.Add(9*time.Second)), ErrTimelockNotElapsed)
		s.ErrorIs(s.lock.Execute(s.manager, s.t0.Add(10*time.Second-time.Nanosecond)), ErrTimelockNotElapsed)
		s.Equal(RecoveryPending, s.lock.Status)
	})

	s.Run("stranger cannot execute even after the delay", func() {
		s.ErrorIs(s.lock.Execute(s.stranger, s.t0.Add(time.Hour)), ErrUnauthorized)
	})

	s.Run("exactly at the bound succeeds once", func() {
		s.Require().NoError(s.lock.Execute(s.manager, s.t0.Add(10*time.Second)))
		s.True(s.lock.Executed())

		err := s.lock.Execute(s.manager, s.t0.Add(11*time.Second))
		s.ErrorIs(err, ErrRecoveryNotPending)
		s.ErrorIs(err, ErrUnauthorized)
	})

	s.Run("executed timelock cannot be re-armed before release", func() {
		s.ErrorIs(s.lock.Initiate(s.manager, s.t0.Add(12*time.Second)), ErrRecoveryActive)
	})
}

func (s *RecoveryTimelockSuite) TestCancel() {
	s.Run("cancel outside pending fails", func() {
		s.ErrorIs(s.lock.Cancel(), ErrRecoveryNotPending)
	})

	s.Run("cancel returns to idle and execute is then unauthorized", func() {
		s.Require().NoError(s.lock.Initiate(s.manager, s.t0))
		s.Require().NoError(s.lock.Cancel())
		s.Equal(RecoveryIdle, s.lock.Status)
		s.Nil(s.lock.ActiveSince)

		err := s.lock.Execute(s.manager, s.t0.Add(time.Hour))
		s.ErrorIs(err, ErrUnauthorized)
	})
}

func (s *RecoveryTimelockSuite) TestReleasePolicies() {
	arm := func(lock *RecoveryTimelock) {
		s.Require().NoError(lock.Initiate(s.manager, s.t0))
		s.Require().NoError(lock.Execute(s.manager, s.t0.Add(lock.Delay)))
	}

	s.Run("rearm policy allows a new episode", func() {
		lock := s.lock.Clone()
		arm(&lock)
		s.ErrorIs(lock.Release(s.stranger), ErrUnauthorized)
		s.Require().NoError(lock.Release(s.manager))
		s.Equal(RecoveryIdle, lock.Status)
		s.False(lock.Consumed)
		s.NoError(lock.Initiate(s.manager, s.t0.Add(time.Minute)))
	})

	s.Run("single use policy consumes the timelock", func() {
		lock, err := NewRecoveryTimelock(s.manager, time.Second, PolicySingleUse)
		s.Require().NoError(err)
		arm(&lock)
		s.Require().NoError(lock.Release(s.manager))
		s.True(lock.Consumed)
		s.ErrorIs(lock.Initiate(s.manager, s.t0.Add(time.Minute)), ErrRecoveryConsumed)
	})

	s.Run("release without execution fails", func() {
		lock := s.lock.Clone()
		s.ErrorIs(lock.Release(s.manager), ErrRecoveryNotPending)
	})
}

func (s *RecoveryTimelockSuite) TestTransferManager() {
	next := id.MustParseAddress("0xb0b")
	s.ErrorIs(s.lock.TransferManager(s.stranger, next), ErrUnauthorized)
	s.ErrorIs(s.lock.TransferManager(s.manager, id.ZeroAddress), ErrInvalidAddress)
	s.Require().NoError(s.lock.TransferManager(s.manager, next))
	s.Equal(next, s.lock.Manager)
	s.ErrorIs(s.lock.Initiate(s.manager, s.t0), ErrUnauthorized)
}

func TestParseRecoveryPolicy(t *testing.T) {
	for in, want := range map[string]RecoveryPolicy{"": PolicyRearm, "rearm": PolicyRearm, "single_use": PolicySingleUse} {
		got, err := ParseRecoveryPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseRecoveryPolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRecoveryPolicy("forever"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
