package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "List the enrolled identities",
	RunE:  runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}

func runGallery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	if _, err := os.Stat(cfg.GalleryDir); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No gallery at %s\n", cfg.GalleryDir)
		return nil
	}

	g, err := gallery.NewStore(cfg.GalleryDir, logger).Scan(cmd.Context())
	if err != nil {
		return err
	}
	if g.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No identities enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "LABEL\tPOSES\tLOGIN\tMISSING")
	fmt.Fprintln(w, "-----\t-----\t-----\t-------")
	for _, id := range g.Identities() {
		_, canLogin := id.Canonical()
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\n", id.Label, len(id.References), len(domain.Poses), yesNo(canLogin), missingPoses(id))
	}
	return w.Flush()
}

func missingPoses(id domain.Identity) string {
	have := make(map[domain.Pose]bool, len(id.References))
	for _, ref := range id.References {
		have[ref.Pose] = true
	}
	var missing []string
	for _, pose := range domain.Poses {
		if !have[pose] {
			missing = append(missing, string(pose))
		}
	}
	if len(missing) == 0 {
		return "-"
	}
	return strings.Join(missing, ", ")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
