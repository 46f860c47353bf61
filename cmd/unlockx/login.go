package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/handler"
)

var loginTimeout time.Duration

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Run one login session in the terminal",
	Long: `Open the camera and compare frames against the gallery until a face
matches, the timeout expires or the command is interrupted.

Exits non-zero when nobody was recognized.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", time.Minute, "give up after this long (0 waits until interrupted)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{withMatcher: true, withDatabase: true})
	if err != nil {
		return err
	}
	defer a.close()

	g, err := a.store.Scan(ctx)
	if err != nil {
		return err
	}
	if g.Len() == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: the gallery is empty, nobody can be recognized")
	}

	if _, err := a.session.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Looking for a face...")

	waitCtx := ctx
	if loginTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, loginTimeout)
		defer cancel()
	}

	state, err := a.session.Wait(waitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if state.Active {
		_ = a.session.Stop()
		state = a.session.Snapshot()
	}

	if state.Error != "" {
		fmt.Fprintln(cmd.OutOrStdout(), handler.NewMatchStateResponse(state).Message)
		return fmt.Errorf("login failed: %s", state.Error)
	}
	if !state.Verified {
		fmt.Fprintln(cmd.OutOrStdout(), "No Match")
		return errors.New("login failed: no enrolled face matched")
	}
	fmt.Fprintln(cmd.OutOrStdout(), handler.NewMatchStateResponse(state).Message)
	return nil
}
