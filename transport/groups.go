package transport

import (
	"github.com/go-kit/kit/log"

	"github.com/nbro/multi-paxos/configuration"
	"github.com/nbro/multi-paxos/wire"
)

// Groups holds the four joined multicast groups every role binary
// needs at least read or write access to. Which ones a given role
// actually uses is up to its main(): an acceptor only ever reads
// Acceptors and writes Proposers, for instance.
type Groups struct {
	Clients   *Group
	Proposers *Group
	Acceptors *Group
	Learners  *Group
}

// JoinAll joins every group named in cfg. selfLoopback controls
// multicast loopback uniformly across all four; pass true only for
// single-host test/demo deployments where a role needs to see its own
// traffic reflected.
func JoinAll(cfg *configuration.Config, selfLoopback bool, logger log.Logger) (*Groups, error) {
	clients, err := Join(cfg.Clients, selfLoopback, logger)
	if err != nil {
		return nil, err
	}
	proposers, err := Join(cfg.Proposers, selfLoopback, logger)
	if err != nil {
		clients.Close()
		return nil, err
	}
	acceptors, err := Join(cfg.Acceptors, selfLoopback, logger)
	if err != nil {
		clients.Close()
		proposers.Close()
		return nil, err
	}
	learners, err := Join(cfg.Learners, selfLoopback, logger)
	if err != nil {
		clients.Close()
		proposers.Close()
		acceptors.Close()
		return nil, err
	}
	return &Groups{Clients: clients, Proposers: proposers, Acceptors: acceptors, Learners: learners}, nil
}

// Close leaves every joined group, logging but not failing on any
// individual close error.
func (g *Groups) Close(logger log.Logger) {
	for name, grp := range map[string]*Group{
		"clients": g.Clients, "proposers": g.Proposers, "acceptors": g.Acceptors, "learners": g.Learners,
	} {
		if grp == nil {
			continue
		}
		if err := grp.Close(); err != nil {
			logger.Log("msg", "error closing multicast group", "group", name, "error", err)
		}
	}
}

// SendToProposers implements paxos.Sender and clientrole.Sender.
func (g *Groups) SendToProposers(m wire.Message) error { return g.Proposers.SendMessage(m) }

// SendToAcceptors implements paxos.ProposerSender.
func (g *Groups) SendToAcceptors(m wire.Message) error { return g.Acceptors.SendMessage(m) }

// SendToLearners implements paxos.ProposerSender and learner.Sender.
func (g *Groups) SendToLearners(m wire.Message) error { return g.Learners.SendMessage(m) }
