package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"

	"dcaengine/config"
	"dcaengine/core/events"
	coretypes "dcaengine/core/types"
	"dcaengine/crypto"
	nativecommon "dcaengine/native/common"
	"dcaengine/native/dca"
	"dcaengine/observability/logging"
	"dcaengine/observability/metrics"
)

func main() {
	args := os.Args[1:]
	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "generate-key":
		generateKey()
	case "init-config":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a config path.")
			printUsage()
			return
		}
		initConfig(args[1])
	case "validate-config":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a config path.")
			printUsage()
			return
		}
		validateConfig(args[1])
	case "demo":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a config path.")
			printUsage()
			return
		}
		days := uint64(3)
		if len(args) >= 3 {
			parsed, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				fmt.Println("Error: Invalid day count.")
				return
			}
			days = parsed
		}
		runDemo(args[1], days)
	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		printUsage()
	}
}

func printUsage() {
	fmt.Println("Usage: dca-cli <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate-key               Generate a new key pair and print the address")
	fmt.Println("  init-config <path>         Write a default configuration file")
	fmt.Println("  validate-config <path>     Load and validate a configuration file")
	fmt.Println("  demo <path> [days]         Run a scripted engine session against the config")
}

func generateKey() {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Address: %s\n", key.PubKey().Address().String())
	fmt.Printf("PrivateKey: %x\n", key.Bytes())
}

func initConfig(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error creating config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s for service %q\n", path, cfg.ServiceName)
}

func validateConfig(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Config OK")
}

// logEmitter forwards engine events into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if l.logger == nil || evt == nil {
		return
	}
	payloader, ok := evt.(interface{ Payload() *coretypes.Event })
	if !ok || payloader.Payload() == nil {
		l.logger.Info("event", "type", evt.EventType())
		return
	}
	payload := payloader.Payload()
	attrs := make([]any, 0, 2+2*len(payload.Attributes))
	attrs = append(attrs, "type", payload.Type)
	for k, v := range payload.Attributes {
		attrs = append(attrs, k, v)
	}
	l.logger.Info("event", attrs...)
}

// demoSession wires a full engine out of the in-memory reference
// collaborators and drives it with a simulated clock.
type demoSession struct {
	logger    *slog.Logger
	engine    *dca.Engine
	custodian *dca.InMemoryCustodian
	executor  *dca.MockTradeExecutor
	params    *dca.Params
	quota     config.Quota
	usage     map[crypto.Address]nativecommon.QuotaNow
	now       uint64
}

func (d *demoSession) advance(seconds uint64) {
	d.now += seconds
}

// admit applies the configured per-address quota before a user operation,
// the same admission check the service layer would run.
func (d *demoSession) admit(addr crypto.Address) error {
	q := nativecommon.Quota{
		MaxRequestsPerMin: d.quota.MaxRequestsPerMin,
		EpochSeconds:      d.quota.EpochSeconds,
	}
	epoch := uint64(0)
	if d.quota.EpochSeconds > 0 {
		epoch = d.now / uint64(d.quota.EpochSeconds)
	}
	next, err := nativecommon.CheckQuota(q, epoch, d.usage[addr], 1, 0)
	if err != nil {
		return err
	}
	d.usage[addr] = next
	return nil
}

func runDemo(path string, days uint64) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	var logger *slog.Logger
	if cfg.LogFile != "" {
		logger = logging.SetupWithRotation(cfg.ServiceName, cfg.Environment, cfg.LogFile)
	} else {
		logger = logging.Setup(cfg.ServiceName, cfg.Environment)
	}
	logger.Info("starting demo", logging.MaskField("config", path), "days", days)

	session, err := buildSession(cfg, logger)
	if err != nil {
		logger.Error("demo setup failed", "error", err.Error())
		os.Exit(1)
	}
	if err := session.run(days); err != nil {
		logger.Error("demo failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("demo complete")
}

func buildSession(cfg *config.Config, logger *slog.Logger) (*demoSession, error) {
	params, err := cfg.Runtime()
	if err != nil {
		return nil, err
	}
	// The demo needs at least two tokens and one interval; synthesise a
	// self-contained allow-list when the config has none.
	if len(params.Tokens) < 2 || len(params.Intervals.Bits()) == 0 {
		registry, err := dca.NewIntervalRegistry([]uint64{3600, 86400})
		if err != nil {
			return nil, err
		}
		params = dca.NewParams(registry)
		for i := 0; i < 2; i++ {
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return nil, err
			}
			params.Tokens[key.PubKey().Address()] = true
		}
	}

	selfKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	self := selfKey.PubKey().Address()

	session := &demoSession{
		logger:    logger,
		custodian: dca.NewInMemoryCustodian(),
		executor:  dca.NewMockTradeExecutor(self),
		params:    params,
		quota:     cfg.Quota,
		usage:     make(map[crypto.Address]nativecommon.QuotaNow),
		now:       86400, // day one, aligned
	}

	engine := dca.NewEngine(self)
	engine.SetState(dca.NewMemoryStore())
	engine.SetParams(params)
	engine.SetCustodian(session.custodian)
	engine.SetTradeExecutor(session.executor)
	engine.SetEmitter(logEmitter{logger: logger})
	engine.SetPauses(cfg.Pauses)
	engine.SetClock(func() uint64 { return session.now })
	session.engine = engine
	return session, nil
}

// run walks one realistic engine lifecycle: two users open positions on the
// same triple, the operator swaps once per day, one user tops up mid-way,
// and both exit with a withdrawal or termination at the end.
func (s *demoSession) run(days uint64) error {
	ctx := context.Background()
	m := metrics.DCA()

	var tokens []crypto.Address
	for tok := range s.params.Tokens {
		tokens = append(tokens, tok)
	}
	from, to := tokens[0], tokens[1]
	pair := dca.PairKey{From: from, To: to}
	interval := uint64(86400)
	if _, ok := s.params.Intervals.IntervalToMask(interval); !ok {
		bits := s.params.Intervals.Bits()
		interval, _ = s.params.Intervals.MaskToInterval(bits[len(bits)-1])
	}

	operatorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	operator := operatorKey.PubKey().Address()
	s.params.SwapExecutors[operator] = true

	aliceKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	bobKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	alice := aliceKey.PubKey().Address()
	bob := bobKey.PubKey().Address()

	budget := new(big.Int).Mul(big.NewInt(1000), s.params.Magnitude(from))
	s.custodian.Credit(alice, from, new(big.Int).Mul(budget, big.NewInt(2)))
	s.custodian.Credit(bob, from, budget)

	// Two `to` per `from`, and deep market inventory.
	s.executor.SetRate(pair, new(big.Int).Mul(big.NewInt(2), big.NewInt(1_000_000_000_000_000_000)))
	s.executor.Fund(to, new(big.Int).Mul(budget, big.NewInt(100)))

	if err := s.admit(alice); err != nil {
		return err
	}
	alicePos, err := s.engine.Create(ctx, alice, dca.CreateRequest{
		From: from, To: to, Interval: interval,
		Amount: budget, NoOfSwaps: days,
	})
	if err != nil {
		m.ObserveFailure("create")
		return err
	}
	m.ObservePositionCreated(pair.From.String() + "/" + pair.To.String())

	if err := s.admit(bob); err != nil {
		return err
	}
	bobBatch, err := s.engine.CreateBatch(ctx, bob, []dca.CreateRequest{{
		From: from, To: to, Interval: interval,
		Amount: budget, NoOfSwaps: days,
	}})
	if err != nil {
		m.ObserveFailure("create_batch")
		return err
	}
	bobPos := bobBatch[0]

	for day := uint64(0); day < days; day++ {
		s.advance(interval)
		wait, err := s.engine.SecondsUntilNextSwap(pair)
		if err != nil {
			return err
		}
		if wait > 0 {
			s.advance(wait)
		}
		preview, err := s.engine.NextSwapInfo(pair)
		if err != nil {
			return err
		}
		s.logger.Info("swap preview",
			"input", preview.TotalInput.String(),
			"intervals", preview.IntervalsInSwap)

		route := dca.TradeRoute{
			Proxy:          s.executor.Self(),
			CallData:       dca.EncodeTradeCallData(from, to, preview.TotalInput),
			DeclaredAmount: preview.TotalInput,
			MinOut:         big.NewInt(0),
		}
		if err := s.engine.Swap(ctx, operator, []dca.SwapRequest{{From: from, To: to, Route: route}}, operator); err != nil {
			m.ObserveFailure("swap")
			return err
		}
		input, _ := new(big.Float).SetInt(preview.TotalInput).Float64()
		m.ObserveSwap(pair.From.String()+"/"+pair.To.String(), input)

		// Mid-run, alice doubles her remaining schedule.
		if day == days/2 && days > 1 {
			if err := s.admit(alice); err != nil {
				return err
			}
			left := alicePos.FinalSwap - alicePos.StartingSwap - (day + 1)
			if left > 0 {
				topUp := new(big.Int).Mul(alicePos.Rate, new(big.Int).SetUint64(left))
				if _, err := s.engine.Modify(ctx, alice, alicePos.ID, topUp, left, true); err != nil {
					m.ObserveFailure("modify")
					return err
				}
				m.ObservePositionModified()
			}
		}
	}

	if err := s.admit(alice); err != nil {
		return err
	}
	withdrawn, err := s.engine.Withdraw(ctx, alice, alicePos.ID, alice)
	if err != nil {
		m.ObserveFailure("withdraw")
		return err
	}
	m.ObserveWithdrawal()
	s.logger.Info("withdrawn", "positionId", alicePos.ID, "amount", withdrawn.String())

	if err := s.engine.TransferOwnership(bob, bobPos.ID, alice); err != nil {
		m.ObserveFailure("transfer_ownership")
		return err
	}

	details, err := s.engine.GetPositionDetails(bobPos.ID)
	if err != nil {
		return err
	}
	s.logger.Info("position details",
		"positionId", details.ID,
		"executed", details.SwapsExecuted,
		"left", details.SwapsLeft,
		"swapped", details.Swapped.String(),
		"unswapped", details.Unswapped.String())

	if err := s.admit(alice); err != nil {
		return err
	}
	unswapped, swapped, err := s.engine.Terminate(ctx, alice, bobPos.ID, alice)
	if err != nil {
		m.ObserveFailure("terminate")
		return err
	}
	m.ObservePositionTerminated()
	s.logger.Info("terminated",
		"positionId", bobPos.ID,
		"unswapped", unswapped.String(),
		"swapped", swapped.String())
	return nil
}
