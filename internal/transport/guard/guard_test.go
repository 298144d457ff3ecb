package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"govnet/internal/governance/models"
	"govnet/internal/governance/ports/mocks"
	"govnet/internal/platform/logger"
	id "govnet/pkg/domain"
	"govnet/pkg/platform/circuit"
	"govnet/pkg/platform/sentinel"
)

type GuardSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	next  *mocks.MockTransport
	clock *clock.Mock
	guard *Transport
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.next = mocks.NewMockTransport(s.ctrl)
	s.clock = clock.NewMock()
	s.guard = New(s.next,
		WithLogger(logger.Discard()),
		WithClock(s.clock),
		WithCooldown(time.Second),
		WithBreakerOptions(circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1)),
	)
}

func (s *GuardSuite) TearDownTest() {
	s.ctrl.Finish()
}

func envelopeTo(d id.Domain) models.Envelope {
	return models.Envelope{DestinationDomain: d, Action: models.CancelRecoveryAction()}
}

func (s *GuardSuite) TestPassesThroughWhileClosed() {
	s.next.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	for range 3 {
		s.NoError(s.guard.Send(context.Background(), envelopeTo(2)))
	}
	s.False(s.guard.Open(2))
}

func (s *GuardSuite) TestOpensAndFailsFast() {
	down := errors.New("broker down")
	s.next.EXPECT().Send(gomock.Any(), gomock.Any()).Return(down).Times(2)

	s.ErrorIs(s.guard.Send(context.Background(), envelopeTo(2)), down)
	s.ErrorIs(s.guard.Send(context.Background(), envelopeTo(2)), down)
	s.True(s.guard.Open(2))

	err := s.guard.Send(context.Background(), envelopeTo(2))
	s.ErrorIs(err, ErrCircuitOpen)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *GuardSuite) TestDestinationsAreIndependent() {
	down := errors.New("broker down")
	s.next.EXPECT().Send(gomock.Any(), envelopeTo(2)).Return(down).Times(2)
	s.next.EXPECT().Send(gomock.Any(), envelopeTo(3)).Return(nil)

	_ = s.guard.Send(context.Background(), envelopeTo(2))
	_ = s.guard.Send(context.Background(), envelopeTo(2))

	s.NoError(s.guard.Send(context.Background(), envelopeTo(3)))
	s.False(s.guard.Open(3))
}

func (s *GuardSuite) TestProbeAfterCooldownCloses() {
	down := errors.New("broker down")
	gomock.InOrder(
		s.next.EXPECT().Send(gomock.Any(), gomock.Any()).Return(down).Times(2),
		s.next.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)
	_ = s.guard.Send(context.Background(), envelopeTo(2))
	_ = s.guard.Send(context.Background(), envelopeTo(2))

	s.clock.Add(500 * time.Millisecond)
	s.ErrorIs(s.guard.Send(context.Background(), envelopeTo(2)), ErrCircuitOpen)

	s.clock.Add(time.Second)
	s.NoError(s.guard.Send(context.Background(), envelopeTo(2)))
	s.False(s.guard.Open(2))
}
