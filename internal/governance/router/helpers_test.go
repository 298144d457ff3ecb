package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"govnet/internal/governance/executor"
	"govnet/internal/governance/models"
	"govnet/internal/transport/memory"
	id "govnet/pkg/domain"
)

const testDelay = 10 * time.Second

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func routerAddress(d id.Domain) id.Address {
	return id.MustParseAddress(fmt.Sprintf("0xa0%08x", uint32(d)))
}

func governorAddress(d id.Domain) id.Address {
	return id.MustParseAddress(fmt.Sprintf("0x60%08x", uint32(d)))
}

func managerAddress(d id.Domain) id.Address {
	return id.MustParseAddress(fmt.Sprintf("0x3a%08x", uint32(d)))
}

func testConfig(d id.Domain) Config {
	return Config{
		Domain:          d,
		Address:         routerAddress(d),
		Governor:        governorAddress(d),
		RecoveryManager: managerAddress(d),
		RecoveryDelay:   testDelay,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// network is a fully meshed set of routers on one memory fabric.
type network struct {
	fabric  *memory.Fabric
	clock   *clock.Mock
	routers map[id.Domain]*Router
	params  map[id.Domain]*executor.ParameterStore
}

func paramsTarget(d id.Domain) id.Address {
	return id.MustParseAddress(fmt.Sprintf("0x9a%08x", uint32(d)))
}

// newNetwork deploys one self-governing router per domain and registers
// every (local, remote) pair including self.
func newNetwork(t testingT, domains []id.Domain, opts ...Option) *network {
	t.Helper()
	ctx := context.Background()
	n := &network{
		fabric:  memory.NewFabric(memory.WithLogger(discardLogger())),
		clock:   clock.NewMock(),
		routers: make(map[id.Domain]*Router),
		params:  make(map[id.Domain]*executor.ParameterStore),
	}
	for _, d := range domains {
		exec := executor.New(executor.WithLogger(discardLogger()))
		params := executor.NewParameterStore()
		require.NoError(t, exec.Register(paramsTarget(d), params.Handle))

		routerOpts := append([]Option{
			WithLogger(discardLogger()),
			WithClock(n.clock),
			WithExecutor(exec),
		}, opts...)
		r, err := New(testConfig(d), n.fabric.Sender(d, routerAddress(d)), routerOpts...)
		require.NoError(t, err)
		require.NoError(t, r.Initialize(ctx))
		n.fabric.Attach(d, r)
		n.routers[d] = r
		n.params[d] = params
	}
	for _, local := range domains {
		for _, remote := range domains {
			require.NoError(t, n.routers[local].SetPeer(ctx, governorAddress(local), remote, routerAddress(remote)))
		}
	}
	return n
}

func (n *network) governorDomain(t testingT, d id.Domain) id.Domain {
	t.Helper()
	g, err := n.routers[d].GovernorDomain()
	require.NoError(t, err)
	return g
}

func (n *network) state(t testingT, d id.Domain) *models.RouterState {
	t.Helper()
	s, err := n.routers[d].State()
	require.NoError(t, err)
	return s
}
