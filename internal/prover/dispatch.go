package prover

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-guardian/internal/blockproc"
	"github.com/Klingon-tech/klingnet-guardian/pkg/proposal"
)

// Dispatcher forwards approved proposals to the block processor.
type Dispatcher struct {
	resolver blockproc.Resolver
}

// NewDispatcher creates a dispatcher that looks the block processor up in
// resolver on every call, so rebinding the service takes effect immediately.
func NewDispatcher(resolver blockproc.Resolver) *Dispatcher {
	return &Dispatcher{resolver: resolver}
}

// Dispatch calls ProveBlock with the encoded proposal and proof. The result
// is not inspected beyond its error.
func (d *Dispatcher) Dispatch(ctx context.Context, p *proposal.Proposal, proof *proposal.Proof) error {
	svc, err := d.resolver.Resolve(blockproc.ServiceName)
	if err != nil {
		return fmt.Errorf("resolve block processor: %w", err)
	}
	if err := svc.ProveBlock(ctx, p.Meta.BlockID, proposal.EncodePayload(p, proof)); err != nil {
		return fmt.Errorf("prove block %d: %w", p.Meta.BlockID, err)
	}
	return nil
}
