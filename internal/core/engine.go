package core

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"VaultLedger/internal/event"
	"VaultLedger/internal/ledger"
	fpmath "VaultLedger/internal/math"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/state"
	"VaultLedger/internal/types"
)

// DefaultLRUCapacity bounds the tier-1 idempotency cache.
const DefaultLRUCapacity = 1_000_000

// DeterministicCore is the single-writer command processor. Every mutation
// of the protocol runs through ProcessEvent under one lock.
type DeterministicCore struct {
	mu sync.RWMutex

	sequence      int64
	lastTimestamp int64
	hasher        *StateHasher
	world         *state.World
	journalGen    *ledger.JournalGenerator
	validator     *ledger.InvariantValidator

	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	logger            zerolog.Logger

	persistChan     chan<- CoreOutput
	projectionChan  chan<- CoreOutput
	checkpointEvery int64
}

// CoreOutput is everything downstream needs about one applied command.
type CoreOutput struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
	Result   any
	// Snapshot is the canonical world snapshot, set every CheckpointEvery
	// sequences for the persistence checkpoint.
	Snapshot []byte
	// Duplicate is set when the command was already applied; nothing else
	// is populated then.
	Duplicate bool
}

// Options wires the core to its surroundings. Nil channels disable the
// corresponding output.
type Options struct {
	PersistChan    chan<- CoreOutput
	ProjectionChan chan<- CoreOutput
	DBChecker      DBIdempotencyChecker
	Metrics        *observability.Metrics
	Logger         *zerolog.Logger
	LRUCapacity    int
	// CheckpointEvery attaches a snapshot to every Nth output; zero disables.
	CheckpointEvery int64
}

func NewDeterministicCore(genesis *state.Genesis, opts Options) (*DeterministicCore, error) {
	journalGen := ledger.NewJournalGenerator()
	world, err := state.NewWorld(genesis, journalGen)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger("core")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	capacity := opts.LRUCapacity
	if capacity == 0 {
		capacity = DefaultLRUCapacity
	}

	return &DeterministicCore{
		hasher:            NewStateHasher(world.Snapshot().CanonicalBytes()),
		world:             world,
		journalGen:        journalGen,
		validator:         ledger.NewInvariantValidator(world.Bank),
		idempotency:       NewIdempotencyChecker(capacity, opts.DBChecker, opts.Metrics, logger),
		sequenceValidator: NewSequenceValidator(),
		metrics:           opts.Metrics,
		logger:            logger,
		persistChan:       opts.PersistChan,
		projectionChan:    opts.ProjectionChan,
		checkpointEvery:   opts.CheckpointEvery,
	}, nil
}

// ProcessEvent is the main processing pipeline. A rejected command leaves
// no trace: every component is restored and no sequence is consumed.
func (c *DeterministicCore) ProcessEvent(evt event.Event) (CoreOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(evt, true)
}

func (c *DeterministicCore) apply(evt event.Event, emit bool) (CoreOutput, error) {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()
	caller := evt.Caller()

	if idempotencyKey == "" || caller == "" {
		c.reject(eventType, types.ErrInvalidArgument)
		return CoreOutput{}, errorsmod.Wrap(types.ErrInvalidArgument, "command needs an idempotency key and a caller")
	}

	// Step 1: Idempotency check (two-tier; LRU only while replaying)
	duplicate := c.idempotency.SeenRecently(eventType, idempotencyKey)
	if !duplicate && emit {
		duplicate = c.idempotency.IsDuplicate(eventType, idempotencyKey)
	}
	if duplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return CoreOutput{Duplicate: true}, nil
	}

	// Step 2: Per-caller ordering
	sourceSequence := evt.SourceSequence()
	if err := c.sequenceValidator.Check(caller, sourceSequence); err != nil {
		c.reject(eventType, err)
		return CoreOutput{}, err
	}

	// Step 3: Dispatch inside a checkpoint
	seq := c.sequence + 1
	timestamp := c.eventTimestamp(evt)
	c.journalGen.BeginBatch(compositeKey(eventType, idempotencyKey), seq, timestamp)
	restore := c.world.Checkpoint()

	result, err := c.dispatchEvent(evt)
	if err != nil {
		restore()
		c.journalGen.Discard()
		c.reject(eventType, err)
		c.logger.Debug().Err(err).
			Str("event_type", eventType).
			Str("idempotency_key", idempotencyKey).
			Str("caller", string(caller)).
			Msg("command rejected")
		return CoreOutput{}, err
	}
	batch := c.journalGen.TakeBatch()

	// Step 4: Ledger and protocol invariants
	if batch != nil {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
	}
	if err := c.validator.Validate(); err != nil {
		panic(fmt.Sprintf("FATAL: ledger invariant violated: %v", err))
	}
	if err := c.postCheckInvariants(); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 5: Envelope and state hash
	payload, err := event.Encode(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: command not encodable: %v", err))
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("FATAL: result not encodable: %v", err))
	}

	hashStart := time.Now()
	snapshot := c.world.Snapshot().CanonicalBytes()
	digest := computeStateDigest(snapshot, resultJSON)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(seq, digest)
	if c.metrics != nil {
		c.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	c.sequence = seq
	c.lastTimestamp = timestamp
	c.sequenceValidator.Advance(caller, sourceSequence)

	output := CoreOutput{
		Envelope: &event.EventEnvelope{
			Sequence:       seq,
			IdempotencyKey: idempotencyKey,
			EventType:      evt.EventType(),
			Caller:         caller,
			Timestamp:      time.UnixMicro(timestamp).UTC(),
			SourceSequence: sourceSequence,
			Payload:        payload,
			Result:         resultJSON,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		},
		Batch:  batch,
		Result: result,
	}
	if c.checkpointEvery > 0 && seq%c.checkpointEvery == 0 {
		output.Snapshot = snapshot
	}

	// Step 6: Emit. Persistence blocks (backpressure, nothing is lost);
	// projections drop on full and rebuild from the log.
	if emit {
		if c.persistChan != nil {
			c.persistChan <- output
		}
		if c.projectionChan != nil {
			select {
			case c.projectionChan <- output:
			default:
				if c.metrics != nil {
					c.metrics.ProjectionDrops.WithLabelValues("core").Inc()
				}
			}
		}
	}

	// Step 7: Mark as processed
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		if batch != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
		c.observe(result)
	}

	return output, nil
}

func (c *DeterministicCore) reject(eventType string, err error) {
	if c.metrics != nil {
		c.metrics.CoreEventsRejected.WithLabelValues(eventType, types.Reason(err)).Inc()
	}
}

// eventTimestamp is the command's input timestamp, never wall-clock time.
// Commands without one inherit the previous command's timestamp.
func (c *DeterministicCore) eventTimestamp(evt event.Event) int64 {
	if ts := evt.TimestampMicros(); ts > 0 {
		return ts
	}
	return c.lastTimestamp
}

// computeStateDigest = SHA-256(canonical world snapshot || result)
func computeStateDigest(snapshot, result []byte) []byte {
	h := sha256.New()
	h.Write(snapshot)
	h.Write(result)
	return h.Sum(nil)
}

// postCheckInvariants verifies the protocol-level solvency rules after
// every command.
func (c *DeterministicCore) postCheckInvariants() error {
	w := c.world
	for _, v := range w.Vaults() {
		held := w.Bank.BalanceOf(v.Address(), v.BaseToken())
		if held.LT(v.Owed()) {
			return fmt.Errorf("vault %s holds %s %s but owes %s", v.Address(), held, v.BaseToken(), v.Owed())
		}
	}
	for _, col := range w.Collectors() {
		held := w.Bank.BalanceOf(col.Address(), col.Token())
		if held.LT(col.Outstanding()) {
			return fmt.Errorf("fee collector %s holds %s but owes %s", col.Address(), held, col.Outstanding())
		}
	}
	for _, wk := range w.Workers() {
		staked, err := w.Farm.StakedBalance(wk.FarmPoolID(), wk.Address())
		if err != nil {
			return err
		}
		if !staked.Equal(wk.TotalShare()) {
			return fmt.Errorf("worker %s tracks %s shares but has %s staked", wk.Address(), wk.TotalShare(), staked)
		}
	}
	return nil
}

// observe records protocol metrics for an applied command.
func (c *DeterministicCore) observe(result any) {
	m := c.metrics
	switch r := result.(type) {
	case DepositOutcome:
		m.PositionsOpened.WithLabelValues(string(r.Position.Worker)).Inc()
	case WithdrawOutcome:
		if !r.Position.Live() {
			m.PositionsClosed.WithLabelValues(string(r.Position.Worker)).Inc()
		}
	case HarvestOutcome:
		worker := string(r.Report.Worker)
		if r.Report.Skipped {
			m.HarvestsTotal.WithLabelValues(worker, "skipped").Inc()
			break
		}
		m.HarvestsTotal.WithLabelValues(worker, "done").Inc()
		m.HarvestedBase.WithLabelValues(worker).Add(wholeTokens(r.Report.Harvested))
		m.TreasuryFees.WithLabelValues(worker).Add(wholeTokens(r.Report.Fee))
		if r.Distribution != nil {
			m.ClientFees.WithLabelValues(worker).Add(wholeTokens(r.Distribution.ClientFees))
			m.DistributionResidual.WithLabelValues(worker).Set(rawUnits(r.Distribution.Residual))
		}
	case CollectOutcome:
		m.RewardsCollected.WithLabelValues(string(r.Vault)).Add(wholeTokens(r.Amount))
	case EmergencyOutcome:
		for _, e := range r.Entries {
			m.EmergencyDrains.WithLabelValues(string(e.Worker)).Inc()
			m.PositionsClosed.WithLabelValues(string(e.Worker)).Add(float64(len(e.Positions)))
		}
	}
	for _, wk := range c.world.Workers() {
		m.WorkerTotalShare.WithLabelValues(string(wk.Address())).Set(wholeTokens(wk.TotalShare()))
	}
	for _, v := range c.world.Vaults() {
		m.VaultOwedRewards.WithLabelValues(string(v.Address())).Set(wholeTokens(v.Owed()))
	}
}

func wholeTokens(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.BigInt()), new(big.Float).SetInt(fpmath.Unit.BigInt())).Float64()
	return f
}

func rawUnits(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
	return f
}

// --- Replay & Startup ---

// Replay re-applies a logged command during recovery. It emits nothing and
// fails if the recomputed sequence or state hash differs from the log.
func (c *DeterministicCore) Replay(env *event.EventEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	evt, err := event.Decode(env.EventType, env.Payload)
	if err != nil {
		return fmt.Errorf("replay seq %d: %w", env.Sequence, err)
	}
	out, err := c.apply(evt, false)
	if err != nil {
		return fmt.Errorf("replay seq %d: command no longer applies: %w", env.Sequence, err)
	}
	if out.Duplicate {
		return fmt.Errorf("replay seq %d: duplicate command %s", env.Sequence, env.IdempotencyKey)
	}
	if out.Envelope.Sequence != env.Sequence {
		return fmt.Errorf("replay seq %d: core assigned %d", env.Sequence, out.Envelope.Sequence)
	}
	if out.Envelope.StateHash != env.StateHash {
		return fmt.Errorf("replay seq %d: state hash divergence (log %x, core %x)",
			env.Sequence, env.StateHash, out.Envelope.StateHash)
	}
	if c.metrics != nil {
		c.metrics.ReplayEventsTotal.Inc()
	}
	return nil
}

// WarmLRU loads recent idempotency keys into the LRU cache.
func (c *DeterministicCore) WarmLRU(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idempotency.lru.WarmFromKeys(keys)
}

// GetSequence returns the last assigned global sequence number.
func (c *DeterministicCore) GetSequence() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *DeterministicCore) GetStateHash() [32]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasher.GetPrevHash()
}

// View runs fn against the world under the read lock. fn must not mutate.
func (c *DeterministicCore) View(fn func(w *state.World) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.world)
}

// ViewAt is View with the sequence the world reflects.
func (c *DeterministicCore) ViewAt(fn func(seq int64, w *state.World) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.sequence, c.world)
}
