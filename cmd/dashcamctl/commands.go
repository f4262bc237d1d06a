package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dashcam/internal/durable"
	"dashcam/internal/logger"
	"dashcam/internal/repository/sqlite"
	"dashcam/internal/service/darkness"
	"dashcam/internal/service/storage"
)

// newRootCmd builds the dashcamctl command tree reading payloads from in and
// printing results to out.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "dashcamctl",
		Short:        "Dashcam frame classification and durable storage tools",
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Diagnostics level on stderr")

	newLogger := func() (*logger.Logger, error) {
		return logger.NewConsole(logLevel)
	}

	root.AddCommand(
		newClassifyCmd(newLogger),
		newWriteCmd(newLogger),
		newAppendCmd(newLogger),
		newReindexCmd(newLogger),
	)
	return root
}

type loggerFactory func() (*logger.Logger, error)

func newClassifyCmd(newLogger loggerFactory) *cobra.Command {
	var (
		threshold int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "classify <image>...",
		Short: "Decode frames and report their average luminance and verdict",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Close()

			classifier := darkness.NewClassifier(threshold, log)
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				pixels, w, h, err := darkness.DecodeFrame(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				v, err := classifier.Classify(pixels, w, h)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				if asJSON {
					if err := json.NewEncoder(cmd.OutOrStdout()).Encode(struct {
						File string `json:"file"`
						darkness.Verdict
					}{path, v}); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s luminance=%d threshold=%d dark=%t\n", path, v.Average, v.Threshold, v.Dark)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", darkness.DefaultThreshold, "Average luminance below which a frame is dark")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per frame")
	return cmd
}

func newWriteCmd(newLogger loggerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "write <path>",
		Short: "Durably replace a file with the bytes read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Close()

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			if data == nil {
				data = []byte{}
			}

			if err := durable.NewWriter(log).WriteWhole(args[0], data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), args[0])
			return nil
		},
	}
}

func newAppendCmd(newLogger loggerFactory) *cobra.Command {
	var newline bool

	cmd := &cobra.Command{
		Use:   "append <path> <line>",
		Short: "Durably append a line to a file",
		Long:  "Append writes the exact bytes given. No terminator is added unless --newline is set.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Close()

			line := args[1]
			if newline {
				line += "\n"
			}
			return durable.NewWriter(log).AppendLine(args[0], line)
		},
	}
	cmd.Flags().BoolVar(&newline, "newline", false, "Terminate the line with \\n")
	return cmd
}

func newReindexCmd(newLogger loggerFactory) *cobra.Command {
	var (
		imagesDir string
		dbPath    string
		threshold int
		noDecode  bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild frame catalog rows from the saved frame files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Close()

			var classify storage.ClassifyFunc
			if !noDecode {
				classifier := darkness.NewClassifier(threshold, nil)
				classify = func(data []byte) (darkness.Verdict, error) {
					pixels, w, h, err := darkness.DecodeFrame(data)
					if err != nil {
						return darkness.Verdict{}, err
					}
					return classifier.Classify(pixels, w, h)
				}
			}

			res, err := storage.ScanFrames(imagesDir, classify)
			if err != nil {
				return err
			}
			for _, name := range res.Skipped {
				log.Warning("Skipping %s", name)
			}

			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
			db, err := sqlite.New(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := sqlite.NewFrameRepository(db)
			inserted, err := repo.BulkInsert(res.Frames)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d frames, inserted %d, skipped %d\n",
				len(res.Frames), inserted, len(res.Skipped))

			stats, err := repo.GetStats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog: %d frames (%d dark), %d bytes\n",
				stats.TotalFrames, stats.DarkFrames, stats.TotalSizeBytes)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagesDir, "images", "./images", "Directory containing saved frames")
	cmd.Flags().StringVar(&dbPath, "db", "./data/frames.db", "Frame catalog database path")
	cmd.Flags().IntVar(&threshold, "threshold", darkness.DefaultThreshold, "Average luminance below which a frame is dark")
	cmd.Flags().BoolVar(&noDecode, "no-decode", false, "Skip decoding; leave luminance at zero")
	return cmd
}
