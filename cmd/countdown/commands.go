package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"countdown.share/config"
	"countdown.share/internal/log"
	"countdown.share/internal/models"
	"countdown.share/internal/session"
	"countdown.share/internal/share"
	"countdown.share/internal/store"
	"countdown.share/internal/timer"
)

// cli carries what every subcommand needs. Tests swap the clock, the tick
// interval and the sharer.
type cli struct {
	cfgFile  string
	cfg      *config.Config
	now      func() time.Time
	interval time.Duration
	sharer   func(ctx context.Context) (share.Sharer, func(), error)
}

func newRootCmd() *cobra.Command {
	c := &cli{now: time.Now}
	c.sharer = c.openSharer
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "countdown",
		Short: "Run and share countdown timers from the terminal",
		Long: `countdown keeps one current countdown in a local profile database,
shows it ticking down, and publishes it as a share link through the
configured remote store.

  countdown start --name Launch --at 2030-01-01T00:00:00Z
  countdown share
  countdown show <shareId>`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			log.Configure(log.Config{Level: cfg.Log.Level, Output: cmd.ErrOrStderr(), Service: "countdown-cli"})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "path to config file")

	root.AddCommand(c.startCmd())
	root.AddCommand(c.resumeCmd())
	root.AddCommand(c.shareCmd())
	root.AddCommand(c.showCmd())
	return root
}

// ── start ────────────────────────────────────────────────────────────────────

func (c *cli) startCmd() *cobra.Command {
	var (
		name    string
		at      string
		message string
		detach  bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Save a new countdown and watch it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseInstant(at)
			if err != nil {
				return err
			}

			spec := models.NewCountdownSpec(name, target, message)
			if err := spec.Validate(c.now()); err != nil {
				return err
			}

			sess, closeSession, err := c.openSession()
			if err != nil {
				return err
			}
			defer closeSession()

			if err := sess.Save(spec); err != nil {
				return err
			}
			if detach {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved countdown to %s (%s)\n", spec.Name, spec.Target.Format(time.RFC3339))
				return nil
			}
			return c.watch(cmd.Context(), cmd.OutOrStdout(), spec)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "what the countdown is for")
	cmd.Flags().StringVar(&at, "at", "", "target instant, RFC 3339 or \"2006-01-02 15:04\" in local time")
	cmd.Flags().StringVar(&message, "message", "", "message shown when the countdown ends")
	cmd.Flags().BoolVar(&detach, "detach", false, "save without watching")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

// ── resume ───────────────────────────────────────────────────────────────────

func (c *cli) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Watch the saved countdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := c.current()
			if err != nil {
				return err
			}
			return c.watch(cmd.Context(), cmd.OutOrStdout(), spec)
		},
	}
}

// ── share ────────────────────────────────────────────────────────────────────

func (c *cli) shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Publish the saved countdown and print its link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := c.current()
			if err != nil {
				return err
			}

			sh, closeSharer, err := c.sharer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSharer()

			shared, err := sh.Share(cmd.Context(), spec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.TrimRight(c.cfg.Server.BaseURL, "/")+"/shared/"+shared.ShareID)
			fmt.Fprintf(out, "Expires %s\n", shared.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

// ── show ─────────────────────────────────────────────────────────────────────

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <shareId>",
		Short: "Watch a shared countdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, closeSharer, err := c.sharer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSharer()

			switch st := share.Classify(sh.Resolve(cmd.Context(), args[0])).(type) {
			case share.Ready:
				return c.watch(cmd.Context(), cmd.OutOrStdout(), st.Countdown.Spec())
			case share.NotFound:
				return errors.New("this countdown doesn't exist")
			case share.Expired:
				return errors.New("this shared countdown has expired")
			case share.Broken:
				return st.Err
			case share.TransportError:
				return st.Err
			default:
				return fmt.Errorf("unexpected share state %T", st)
			}
		},
	}
}

// watch prints the countdown until it completes or ctx is cancelled.
func (c *cli) watch(ctx context.Context, out io.Writer, spec models.CountdownSpec) error {
	fmt.Fprintf(out, "%s\n", spec.Name)

	opts := []timer.Option{timer.WithClock(c.now)}
	if c.interval > 0 {
		opts = append(opts, timer.WithInterval(c.interval))
	}

	completed := false
	handle := timer.Start(ctx, spec.Target,
		func(r timer.Remaining) { fmt.Fprintf(out, "\r%s", r) },
		func() {
			completed = true
			fmt.Fprintf(out, "\n%s\n", spec.Message())
		},
		opts...,
	)
	<-handle.Done()

	if !completed {
		fmt.Fprintln(out)
		return ctx.Err()
	}
	return nil
}

func (c *cli) current() (models.CountdownSpec, error) {
	sess, closeSession, err := c.openSession()
	if err != nil {
		return models.CountdownSpec{}, err
	}
	defer closeSession()

	spec, ok := sess.Load()
	if !ok {
		return models.CountdownSpec{}, errors.New("no countdown saved, run `countdown start` first")
	}
	return spec, nil
}

func (c *cli) openSession() (*session.Store, func(), error) {
	db, err := session.OpenSQLite(c.cfg.Session.LocalDB)
	if err != nil {
		return nil, nil, err
	}
	return session.New(db), func() { _ = db.Close() }, nil
}

// openSharer connects the configured remote store. The in-memory store
// dies with the process, so it cannot back a share link from here.
func (c *cli) openSharer(ctx context.Context) (share.Sharer, func(), error) {
	noop := func() {}
	if c.cfg.Store.Type == config.StoreMemory {
		return share.Unconfigured{Reason: "no remote store configured (set STORE_TYPE)"}, noop, nil
	}
	if missing := c.cfg.RemoteMissing(); missing != "" {
		return share.Unconfigured{Reason: missing}, noop, nil
	}

	st, err := store.Open(ctx, c.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", share.ErrRemoteUnavailable, err)
	}
	svc := share.NewService(st, share.Config{
		TTL:     c.cfg.Share.TTL,
		Timeout: c.cfg.Share.Timeout,
	})
	return svc, func() { _ = st.Close() }, nil
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot read %q as a date and time", models.ErrValidation, s)
}
