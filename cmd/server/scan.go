package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shelfscan/internal/capture"
	"github.com/JonMunkholm/shelfscan/internal/capture/serial"
	"github.com/JonMunkholm/shelfscan/internal/logging"
)

var (
	flagScanDevice string
	flagScanManual bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read one barcode from a serial scanner and print it",
	Long: `Opens the first attached serial barcode scanner and prints the first
barcode it reads to stdout. Type a line at any time to enter the barcode
manually instead; manual entry is also offered when no scanner can be used.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, _ []string) error {
	// stdout carries the barcode only.
	logger := logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	glob := flagScanDevice
	if glob == "" {
		glob = cfg.Capture.SerialGlob
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	barcode, err := scanOnce(ctx, scanOptions{
		decoder:     serial.New(glob, logger),
		manualOnly:  flagScanManual,
		openTimeout: cfg.Capture.OpenTimeout,
		in:          os.Stdin,
		prompt:      os.Stderr,
		logger:      logger,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), barcode)
	return err
}

type scanOptions struct {
	decoder     capture.Decoder
	manualOnly  bool
	openTimeout time.Duration
	in          io.Reader
	prompt      io.Writer
	logger      *slog.Logger
}

// scanOnce runs one capture session against the terminal and returns its
// result. Lines read from in are submitted as manual entries.
func scanOnce(ctx context.Context, opts scanOptions) (string, error) {
	results := make(chan string, 1)
	session := capture.NewSession(capture.Options{
		ID:            "terminal",
		Decoder:       opts.decoder,
		Env:           capture.Environment{Secure: true},
		Feedback:      bellFeedback{w: opts.prompt},
		OpenTimeout:   opts.openTimeout,
		Logger:        opts.logger,
		OnScanSuccess: func(barcode string) { results <- barcode },
	})
	defer session.Close(context.Background())

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go readLines(opts.in, lines, done)

	if opts.manualOnly {
		if err := session.RequestManualEntry(ctx); err != nil {
			return "", err
		}
		fmt.Fprint(opts.prompt, "Barcode: ")
	} else if err := session.Start(ctx); err != nil {
		var failure *capture.Failure
		if !errors.As(err, &failure) {
			return "", err
		}
		fmt.Fprintf(opts.prompt, "%s [%s]\n", failure.Message, failure.Category.Code())
		if err := session.RequestManualEntry(ctx); err != nil {
			return "", err
		}
		fmt.Fprint(opts.prompt, "Barcode: ")
	} else {
		fmt.Fprintln(opts.prompt, "Scan a barcode, or type it and press Enter.")
	}

	for {
		select {
		case barcode := <-results:
			return barcode, nil
		case <-ctx.Done():
			return "", ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case barcode := <-results:
					return barcode, nil
				default:
					return "", errors.New("input closed before a barcode was read")
				}
			}
			if err := session.RequestManualEntry(ctx); err != nil {
				if errors.Is(err, capture.ErrAlreadyEmitted) {
					continue
				}
				return "", err
			}
			err := session.SubmitManual(ctx, line)
			switch {
			case errors.Is(err, capture.ErrEmptyManualInput):
				fmt.Fprint(opts.prompt, "Barcode: ")
			case err != nil:
				return "", err
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string, done <-chan struct{}) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case out <- sc.Text():
		case <-done:
			return
		}
	}
}

// bellFeedback rings the terminal bell on success.
type bellFeedback struct {
	w io.Writer
}

func (f bellFeedback) Beep(context.Context, capture.Tone) error {
	_, err := io.WriteString(f.w, "\a")
	return err
}

func (bellFeedback) Vibrate(context.Context, time.Duration) error {
	return nil
}
