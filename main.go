/*
Karmabot connects to an IRC server and keeps a karma tally per nickname.

Anyone in a channel the bot has joined can write `name++` or `name--` (longer
runs count for more) and the bot answers with the new score. It also joins and
leaves channels on request, lists the best and worst karma, and can create a
strawpoll.

Settings come from KARMABOT_* environment variables and can be overridden by
flags. It's backed by a SQLite DB, but does not require CGO to compile. The
table must be created once with `karmabot initdb` before the bot is run.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/karmabot/internal/core"
	"github.com/jdholdren/karmabot/internal/core/db"
	"github.com/jdholdren/karmabot/internal/irc"
	"github.com/jdholdren/karmabot/internal/ircserv"
	"github.com/jdholdren/karmabot/internal/logging"
	"github.com/jdholdren/karmabot/internal/strawpoll"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	var cfg config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		log.Printf("error parsing config: %s", err)
		return 1
	}

	l := logging.NewLogger(cfg.Debug)
	defer func() {
		// Syncing stderr fails on some platforms; nothing to do about it
		_ = l.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cfg, l).ExecuteContext(ctx); err != nil {
		l.Errorw("exiting", "err", err)
		return 1
	}

	return 0
}

func newRootCmd(cfg *config, l *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:           "karmabot",
		Short:         "An IRC bot that keeps karma",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite database")

	initCmd := &cobra.Command{
		Use:   "initdb",
		Short: "Create the karma table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return initDB(cmd.Context(), *cfg, l)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <server>",
		Short: "Connect to an IRC server and listen for commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Server = args[0]
			}
			if cfg.Server == "" {
				return errors.New("a server address is required")
			}
			return runBot(cmd.Context(), *cfg, l)
		},
	}
	runCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "the IRC server's port")
	runCmd.Flags().StringVar(&cfg.Nick, "nick", cfg.Nick, "nickname to connect as")
	runCmd.Flags().StringVar(&cfg.Proxy, "proxy", cfg.Proxy, "proxy URL to send poll requests through")

	root.AddCommand(initCmd, runCmd)

	return root
}

func initDB(ctx context.Context, cfg config, l *zap.SugaredLogger) error {
	sqlDB, err := setupDB(cfg)
	if err != nil {
		return err
	}
	d := db.New(sqlDB)
	defer d.Close()

	if err := d.InitSchema(ctx); err != nil {
		return fmt.Errorf("error initializing the database: %w", err)
	}

	l.Infow("database initialized", "db_path", cfg.DBPath)
	return nil
}

// Runs the bot until it is told to quit or ctx is cancelled. Cancellation is a clean exit.
func runBot(ctx context.Context, cfg config, l *zap.SugaredLogger) error {
	l.Infow("parsed config", "config", cfg)

	sqlDB, err := setupDB(cfg)
	if err != nil {
		return fmt.Errorf("error opening db: %w", err)
	}

	return serve(ctx, cfg, l, db.New(sqlDB))
}

// A store is the karma store along with the handle that releases it
type store interface {
	core.Store
	Close() error
}

// Connects and listens with st. st is closed exactly once, on every return path.
func serve(ctx context.Context, cfg config, l *zap.SugaredLogger, st store) error {
	defer func() {
		if err := st.Close(); err != nil {
			l.Warnw("error closing db", "err", err)
		}
	}()

	pc, err := strawpoll.NewClient(cfg.pollConfig(), l.Named("strawpoll"))
	if err != nil {
		return fmt.Errorf("error creating poll client: %w", err)
	}

	sess := irc.NewSession(
		irc.Config{
			Addr:        net.JoinHostPort(cfg.Server, strconv.Itoa(cfg.Port)),
			Nick:        cfg.Nick,
			SettleDelay: cfg.SettleDelay,
		},
		l.Named("irc"),
	)
	defer sess.Close()

	srv := ircserv.New(
		l.Named("ircserv"),
		ircserv.Config{Nick: cfg.Nick},
		sess,
		core.New(st, l.Named("core")),
		pc,
	)

	if err := sess.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			l.Infow("shutting down", "reason", ctx.Err())
			return nil
		}
		return err
	}

	err = sess.Listen(ctx, srv)
	if ctx.Err() != nil {
		l.Infow("shutting down", "reason", ctx.Err())
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while listening: %w", err)
	}

	l.Info("quit requested, shutting down")
	return nil
}
