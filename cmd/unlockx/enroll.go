package main

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
)

var (
	enrollFirst string
	enrollLast  string
	enrollDelay time.Duration
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Capture the reference poses of a new identity",
	Long: `Walk through the five enrollment poses (front, left, right, up, down) and
store one reference image per pose in the gallery.

By default each pose is captured when Enter is pressed. With --delay the
poses are captured automatically, one every delay.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().StringVar(&enrollFirst, "first", "", "first name")
	enrollCmd.Flags().StringVar(&enrollLast, "last", "", "last name, used as the gallery label")
	enrollCmd.Flags().DurationVar(&enrollDelay, "delay", 0, "capture automatically after this delay instead of waiting for Enter")
	_ = enrollCmd.MarkFlagRequired("last")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	state, err := a.enrollment.SubmitName(ctx, enrollFirst, enrollLast)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Enrolling %s\n", state.Label)

	bar := progressbar.NewOptions(state.Total,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)

	input := bufio.NewScanner(cmd.InOrStdin())
	for state.Phase == enrollment.PhaseCapturing {
		if enrollDelay > 0 {
			fmt.Fprintf(out, "\nPose %d/%d: %s (capturing in %s)\n", state.PoseIndex+1, state.Total, state.Pose, enrollDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(enrollDelay):
			}
		} else {
			fmt.Fprintf(out, "\nPose %d/%d: %s. Press Enter to capture.\n", state.PoseIndex+1, state.Total, state.Pose)
			if !input.Scan() {
				return fmt.Errorf("enrollment aborted after %d of %d poses", state.PoseIndex, state.Total)
			}
		}

		next, err := a.enrollment.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retryableCapture(err) {
				fmt.Fprintf(out, "capture failed: %v, try again\n", err)
				continue
			}
			return err
		}
		state = next
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Fprintf(out, "\nEnrolled %s with %d reference images in %s\n", state.Label, len(state.Captured), a.store.Root())
	return nil
}

// retryableCapture reports whether a capture failure leaves the camera
// usable for another try.
func retryableCapture(err error) bool {
	return errors.Is(err, domain.ErrReadTimeout) ||
		errors.Is(err, domain.ErrNoFrame) ||
		errors.Is(err, domain.ErrInvalidImage)
}
