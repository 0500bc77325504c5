// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Envelope is one in-flight message: sender, destination, attached
// native value, and the tagged record. Bounced envelopes carry a failed
// message's value back to its sender.
type Envelope struct {
	From    common.Address
	To      common.Address
	Value   *uint256.Int
	Message Message
	Bounced bool
	Init    *StateInit
}

// StateInit lets the first message to a content-derived address deploy
// the actor it targets. The runtime verifies the address actually derives
// from (kind template, data) before instantiating.
type StateInit struct {
	Kind ContractKind
	Data []byte
}

// Actor is an isolated unit of state plus a message handler. An actor
// processes one envelope at a time; returning an error bounces the
// envelope's value back to its sender and discards all staged effects.
type Actor interface {
	Address() common.Address
	Receive(ctx *MsgContext, env *Envelope) error
}

// Constructor builds an actor of a given kind from its init data.
type Constructor func(rt *Runtime, addr common.Address, initData []byte) (Actor, error)

// MsgContext is the per-message effect collector handed to an actor.
// Outgoing envelopes are staged and only dispatched if the handler
// returns nil, so a failed message never leaves partial effects.
type MsgContext struct {
	rt          *Runtime
	self        common.Address
	now         int64
	out         []*Envelope
	destroyed   bool
	beneficiary common.Address
}

// Now returns the logical time the message is processed at.
func (c *MsgContext) Now() int64 { return c.now }

// Log returns the runtime logger.
func (c *MsgContext) Log() log.Logger { return c.rt.log }

// Send stages an outgoing envelope from the current actor.
func (c *MsgContext) Send(to common.Address, value *uint256.Int, msg Message) {
	c.SendInit(to, value, msg, nil)
}

// SendInit stages an outgoing envelope carrying deploy data.
func (c *MsgContext) SendInit(to common.Address, value *uint256.Int, msg Message, init *StateInit) {
	if value == nil {
		value = uint256.NewInt(0)
	}
	c.out = append(c.out, &Envelope{
		From:    c.self,
		To:      to,
		Value:   value.Clone(),
		Message: msg,
		Init:    init,
	})
}

// Destroy marks the current actor for removal after this message; its
// remaining balance is forwarded to the beneficiary.
func (c *MsgContext) Destroy(beneficiary common.Address) {
	c.destroyed = true
	c.beneficiary = beneficiary
}

// Runtime routes envelopes between actors. Delivery is strictly FIFO, so
// per-actor serialization and per-sender-pair ordering both hold. There
// is no synchronous cross-actor call: failure comes back as a bounced
// envelope, never as a return value.
type Runtime struct {
	mu sync.Mutex

	log       log.Logger
	store     *StateStore
	config    *Config
	templates *CodeTemplates

	actors       map[common.Address]Actor
	constructors map[ContractKind]Constructor
	balances     map[common.Address]*uint256.Int
	queue        []*Envelope

	now int64
}

// NewRuntime creates a runtime with the core actor constructors
// registered. A nil store disables persistence.
func NewRuntime(logger log.Logger, store *StateStore, cfg *Config) *Runtime {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	rt := &Runtime{
		log:          logger,
		store:        store,
		config:       cfg,
		templates:    DefaultCodeTemplates(),
		actors:       make(map[common.Address]Actor),
		constructors: make(map[ContractKind]Constructor),
		balances:     make(map[common.Address]*uint256.Int),
		now:          time.Now().Unix(),
	}
	rt.constructors[KindVault] = newVaultFromInit
	rt.constructors[KindPoolProduct] = newPoolFromInit
	rt.constructors[KindPoolStable] = newPoolFromInit
	rt.constructors[KindDepository] = newDepositoryFromInit
	rt.constructors[KindPoolCreator] = newPoolCreatorFromInit
	return rt
}

// Config returns the protocol configuration.
func (rt *Runtime) Config() *Config { return rt.config }

// Templates returns the live code-template set.
func (rt *Runtime) Templates() *CodeTemplates { return rt.templates }

// SetNow fixes the logical clock; used by deadline checks.
func (rt *Runtime) SetNow(now int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.now = now
}

// Register installs an actor at its address.
func (rt *Runtime) Register(a Actor) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.actors[a.Address()] = a
}

// ActorAt returns the actor at an address, if any.
func (rt *Runtime) ActorAt(addr common.Address) Actor {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.actors[addr]
}

// Balance returns the native balance of an address.
func (rt *Runtime) Balance(addr common.Address) *uint256.Int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if b, ok := rt.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

// Mint credits native value to an address (genesis funding).
func (rt *Runtime) Mint(addr common.Address, amount *uint256.Int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.credit(addr, amount)
}

func (rt *Runtime) credit(addr common.Address, amount *uint256.Int) {
	b, ok := rt.balances[addr]
	if !ok {
		b = uint256.NewInt(0)
		rt.balances[addr] = b
	}
	b.Add(b, amount)
}

func (rt *Runtime) debit(addr common.Address, amount *uint256.Int) error {
	b, ok := rt.balances[addr]
	if !ok || b.Lt(amount) {
		return fmt.Errorf("insufficient balance on %s", addr.Hex())
	}
	b.Sub(b, amount)
	return nil
}

// Send injects an envelope from outside the actor set (a user or an
// external collaborator). Value is debited from the sender.
func (rt *Runtime) Send(env *Envelope) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if env.Value == nil {
		env.Value = uint256.NewInt(0)
	}
	if !env.Value.IsZero() {
		if err := rt.debit(env.From, env.Value); err != nil {
			return err
		}
	}
	rt.queue = append(rt.queue, env)
	return nil
}

// Run drains the queue to quiescence and returns the number of envelopes
// processed.
func (rt *Runtime) Run() int {
	processed := 0
	for {
		rt.mu.Lock()
		if len(rt.queue) == 0 {
			rt.mu.Unlock()
			return processed
		}
		env := rt.queue[0]
		rt.queue = rt.queue[1:]
		rt.mu.Unlock()

		rt.process(env)
		processed++
	}
}

// Serve processes injected envelopes until the context is cancelled.
// Actors still handle one message at a time; Serve only adds liveness.
func (rt *Runtime) Serve(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.SetNow(time.Now().Unix())
			rt.Run()
		}
	}
}

const mailboxDepth = 64

// mailbox is a per-address delivery queue drained by its own goroutine.
type mailbox struct {
	ch chan *Envelope
}

// ServeConcurrent routes envelopes to per-address mailbox goroutines until
// the context is cancelled. Each address still handles one message at a
// time; distinct actors run in parallel. The dispatcher drains the global
// queue in order, so per-sender-pair FIFO is preserved.
func (rt *Runtime) ServeConcurrent(ctx context.Context) {
	var wg sync.WaitGroup
	boxes := make(map[common.Address]*mailbox)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, mb := range boxes {
				close(mb.ch)
			}
			wg.Wait()
			return
		case <-ticker.C:
			rt.SetNow(time.Now().Unix())
			for {
				rt.mu.Lock()
				if len(rt.queue) == 0 {
					rt.mu.Unlock()
					break
				}
				env := rt.queue[0]
				rt.queue = rt.queue[1:]
				rt.mu.Unlock()

				mb := boxes[env.To]
				if mb == nil {
					mb = &mailbox{ch: make(chan *Envelope, mailboxDepth)}
					boxes[env.To] = mb
					wg.Add(1)
					go func(mb *mailbox) {
						defer wg.Done()
						for env := range mb.ch {
							rt.process(env)
						}
					}(mb)
				}
				mb.ch <- env
			}
		}
	}
}

// process delivers one envelope: credit value, locate or deploy the
// actor, run the handler, then either flush staged effects or bounce.
func (rt *Runtime) process(env *Envelope) {
	rt.mu.Lock()
	rt.credit(env.To, env.Value)
	actor := rt.actors[env.To]
	now := rt.now
	rt.mu.Unlock()

	if actor == nil && env.Init != nil {
		deployed, err := rt.deploy(env.To, env.Init)
		if err != nil {
			rt.log.Warn("deploy rejected", "to", env.To.Hex(), "err", err)
			rt.bounce(env)
			return
		}
		actor = deployed
	}
	if actor == nil {
		// Plain transfers and outward-facing notifications settle on
		// passive accounts; anything carrying a protocol instruction
		// for a missing actor bounces.
		if passiveOp(env.Message.Op) {
			return
		}
		rt.bounce(env)
		return
	}

	ctx := &MsgContext{rt: rt, self: env.To, now: now}
	if err := actor.Receive(ctx, env); err != nil {
		rt.log.Debug("message rejected",
			"op", fmt.Sprintf("%#x", env.Message.Op),
			"to", env.To.Hex(),
			"err", err)
		rt.bounce(env)
		return
	}
	rt.flush(ctx)
}

// deploy instantiates an actor at a content-derived address, verifying
// the address against the claimed template and init data.
func (rt *Runtime) deploy(addr common.Address, init *StateInit) (Actor, error) {
	ctor, ok := rt.constructors[init.Kind]
	if !ok {
		return nil, fmt.Errorf("no constructor for kind %s", init.Kind)
	}
	if DeriveAddress(rt.templates.Hash(init.Kind), init.Data) != addr {
		return nil, fmt.Errorf("init data does not derive %s", addr.Hex())
	}
	actor, err := ctor(rt, addr, init.Data)
	if err != nil {
		return nil, err
	}
	rt.Register(actor)
	return actor, nil
}

// flush dispatches staged envelopes and persists the actor's state.
func (rt *Runtime) flush(ctx *MsgContext) {
	rt.mu.Lock()
	for _, out := range ctx.out {
		if !out.Value.IsZero() {
			if err := rt.debit(out.From, out.Value); err != nil {
				// Staged sends are bounded by the actor's balance;
				// reaching this is a protocol bug worth surfacing.
				rt.log.Error("staged send exceeds balance",
					"from", out.From.Hex(), "err", err)
				continue
			}
		}
		rt.queue = append(rt.queue, out)
	}
	actor := rt.actors[ctx.self]
	if ctx.destroyed {
		delete(rt.actors, ctx.self)
		if remaining, ok := rt.balances[ctx.self]; ok && !remaining.IsZero() {
			amount := remaining.Clone()
			remaining.Clear()
			rt.credit(ctx.beneficiary, amount)
		}
		rt.mu.Unlock()
		if rt.store != nil {
			if err := rt.store.DeleteActor(ctx.self); err != nil {
				rt.log.Error("state delete failed", "addr", ctx.self.Hex(), "err", err)
			}
		}
		return
	}
	rt.mu.Unlock()

	if rt.store != nil {
		if snap, ok := actor.(snapshotter); ok {
			if err := rt.store.PutActor(ctx.self, snap.snapshot()); err != nil {
				rt.log.Error("state write failed", "addr", ctx.self.Hex(), "err", err)
			}
		}
	}
}

// RestoreActor reloads a persisted actor after a restart and registers
// it. Returns nil with no error when the store holds no record.
func (rt *Runtime) RestoreActor(kind ContractKind, addr common.Address) (Actor, error) {
	if rt.store == nil {
		return nil, fmt.Errorf("runtime has no state store")
	}
	data, err := rt.store.GetActor(addr)
	if err != nil || data == nil {
		return nil, err
	}
	var actor Actor
	switch kind {
	case KindFactory:
		actor, err = RestoreFactory(rt, addr, data)
	case KindVault:
		actor, err = RestoreVault(rt, addr, data)
	case KindPoolProduct, KindPoolStable:
		actor, err = RestorePool(rt, addr, data)
	case KindDepository, KindPoolCreator:
		actor, err = RestoreEscrow(rt, addr, data)
	default:
		return nil, fmt.Errorf("no restorer for kind %s", kind)
	}
	if err != nil {
		return nil, err
	}
	rt.Register(actor)
	return actor, nil
}

// passiveOp reports whether a message may settle on an account with no
// actor behind it. These are the shapes addressed to users and external
// token-standard collaborators.
func passiveOp(op uint32) bool {
	switch op {
	case 0, OpNotify, OpTokenTransfer, OpLPMintNotify, OpLPBurnNotify:
		return true
	}
	return false
}

// bounce returns a failed envelope's value to its sender. A bounce of a
// bounce is terminal: the value stays where it is.
func (rt *Runtime) bounce(env *Envelope) {
	if env.Bounced {
		rt.log.Error("bounced envelope rejected again; value retained",
			"at", env.To.Hex(),
			"op", fmt.Sprintf("%#x", env.Message.Op))
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !env.Value.IsZero() {
		if err := rt.debit(env.To, env.Value); err != nil {
			rt.log.Error("bounce debit failed", "err", err)
			return
		}
	}
	rt.queue = append(rt.queue, &Envelope{
		From:    env.To,
		To:      env.From,
		Value:   env.Value,
		Message: env.Message,
		Bounced: true,
	})
}
