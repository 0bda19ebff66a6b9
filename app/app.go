// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

// Package app provides the top app-level abstraction and entrypoint for a
// passbot instance. All processes and their dependencies are wired and added
// to the life cycle manager which handles starting and graceful shutdown.
package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ingressfs/passbot/app/errors"
	"github.com/ingressfs/passbot/app/lifecycle"
	"github.com/ingressfs/passbot/app/log"
	"github.com/ingressfs/passbot/app/pool"
	"github.com/ingressfs/passbot/app/promauto"
	"github.com/ingressfs/passbot/app/version"
	"github.com/ingressfs/passbot/app/z"
	"github.com/ingressfs/passbot/imgnote"
	"github.com/ingressfs/passbot/passcode"
	"github.com/ingressfs/passbot/telegram"
)

// Config configures the app.
type Config struct {
	Token             string
	AdminID           string
	Keyword           string
	DataFile          string
	ImageDumpDir      string
	BotAPIURL         string
	MonitoringAddr    string
	PortalCount       int
	MinCount          int
	MinRate           float64
	MinCorrect        int
	DumpInterval      time.Duration
	BroadcastInterval time.Duration
	PollInterval      time.Duration
	PoolWorkers       int
	PoolQueue         int
	Log               log.Config

	TestConfig TestConfig
}

// TestConfig defines additional test-only config.
type TestConfig struct {
	// Messenger provides the messenger explicitly, skips the Telegram client.
	Messenger passcode.Messenger
	// Renderer provides the image renderer explicitly, skips the imgnote annotator.
	Renderer passcode.ImageRenderer
}

// DefaultConfig returns the default app config.
func DefaultConfig() Config {
	return Config{
		Keyword:           "/passcode",
		DataFile:          "passcode_log.json",
		MonitoringAddr:    "127.0.0.1:8088",
		PortalCount:       11,
		MinCount:          3,
		MinRate:           0.5,
		MinCorrect:        3,
		DumpInterval:      time.Second * 10,
		BroadcastInterval: time.Second * 60,
		PollInterval:      time.Second * 5,
		PoolWorkers:       32,
		PoolQueue:         1024,
		Log:               log.DefaultConfig(),
	}
}

// Run is the entrypoint for running a passbot instance.
func Run(ctx context.Context, conf Config) (err error) {
	ctx = log.WithTopic(ctx, "app-start")
	defer func() {
		if err != nil {
			log.Error(ctx, "Fatal run error", err)
		}
	}()

	version.LogVersion(ctx, "Starting passbot")

	if conf.Token == "" && conf.TestConfig.Messenger == nil {
		return errors.New("bot token not configured")
	}
	if conf.AdminID == "" {
		log.Warn(ctx, "Admin reporter not configured, admin commands and broadcasts disabled", nil)
	}

	store := passcode.NewStore(conf.PortalCount, passcode.Thresholds{
		MinCount:   conf.MinCount,
		MinRate:    conf.MinRate,
		MinCorrect: conf.MinCorrect,
	})

	gateway := passcode.NewGateway(conf.DataFile)

	snap, err := gateway.Load(ctx)
	if err != nil {
		return err
	}
	store.Restore(snap)

	msgr := conf.TestConfig.Messenger
	if msgr == nil {
		var opts []telegram.Option
		if conf.BotAPIURL != "" {
			opts = append(opts, telegram.WithBotURL(conf.BotAPIURL))
		}
		msgr = telegram.New(conf.Token, opts...)
	}

	if err := logBotIdentity(ctx, msgr); err != nil {
		return err
	}

	renderer := conf.TestConfig.Renderer
	if renderer == nil {
		var opts []imgnote.Option
		if conf.ImageDumpDir != "" {
			opts = append(opts, imgnote.WithDumpDir(conf.ImageDumpDir))
		}
		renderer = imgnote.New(opts...)
	}

	workerPool := pool.New(conf.PoolWorkers, conf.PoolQueue)

	adminID := passcode.ReporterID(conf.AdminID)
	bcaster := passcode.NewBroadcaster(store, msgr, renderer, adminID)

	sched := passcode.NewScheduler(workerPool,
		conf.DumpInterval, conf.BroadcastInterval,
		passcode.DumpTask(store, gateway), bcaster.MaybeBroadcast)

	router, err := passcode.NewRouter(store, msgr, sched, bcaster, workerPool, conf.Keyword, adminID)
	if err != nil {
		return err
	}

	poller := passcode.NewPoller(msgr, workerPool, router.Handle, conf.PollInterval)

	life := new(lifecycle.Manager)

	wireMonitoringAPI(life, conf.MonitoringAddr, promauto.NewRegistry(prometheus.Labels{}))

	life.RegisterStart(lifecycle.AsyncBackground, lifecycle.StartWorkerPool, lifecycle.HookFuncErr(workerPool.Run))
	life.RegisterStart(lifecycle.AsyncBackground, lifecycle.StartPoller, lifecycle.HookFuncErr(poller.Run))

	life.RegisterStop(lifecycle.StopPoller, lifecycle.HookFuncMin(poller.Stop))
	life.RegisterStop(lifecycle.StopScheduler, lifecycle.HookFuncErr(func() error {
		// Final synchronous dump so the debounce window is not a loss window on shutdown.
		return gateway.Save(store.Snapshot())
	}))
	life.RegisterStop(lifecycle.StopWorkerPool, lifecycle.HookFuncMin(workerPool.Stop))

	log.Info(ctx, "Passbot wired",
		z.Int("portal_count", conf.PortalCount),
		z.Str("data_file", conf.DataFile),
		z.Str("keyword", conf.Keyword),
	)

	return life.Run(ctx)
}

// logBotIdentity logs the bot's own identity if the messenger supports it.
func logBotIdentity(ctx context.Context, msgr passcode.Messenger) error {
	identifier, ok := msgr.(interface {
		GetMe(context.Context) (passcode.User, error)
	})
	if !ok {
		return nil
	}

	me, err := identifier.GetMe(ctx)
	if err != nil {
		return errors.Wrap(err, "query bot identity")
	}

	log.Info(ctx, "Bot identity confirmed",
		z.I64("id", me.ID),
		z.Str("username", me.Username),
		z.Str("first_name", me.FirstName),
	)

	return nil
}
