// Command jpocr extracts Japanese text from one image.
//
// Usage:
//
//	jpocr -image scan.png                     # print the combined Japanese text
//	jpocr -image scan.png -translate en       # also translate it
//	jpocr -image scan.png -all -json          # every detection, as JSON
//	jpocr -image scan.png -out result.txt     # save the combined text
//	jpocr -image scan.png -enqueue            # hand the image to the worker queue
//	jpocr -history 10                         # show recent history
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/app"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/config"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/logging"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/processor"
	"github.com/Kuronne/Japanese-OCR-Interpreter/internal/queue"
)

type options struct {
	image     string
	translate string
	all       bool
	asJSON    bool
	enqueue   bool
	out       string
	history   int
}

func main() {
	var opts options
	flag.StringVar(&opts.image, "image", "", "path of the image to read")
	flag.StringVar(&opts.translate, "translate", "", "translate the extracted text into this language code (e.g. en)")
	flag.BoolVar(&opts.all, "all", false, "also print non-Japanese detections")
	flag.BoolVar(&opts.asJSON, "json", false, "print the full response as JSON")
	flag.BoolVar(&opts.enqueue, "enqueue", false, "submit the image to the worker queue instead of reading it here")
	flag.StringVar(&opts.out, "out", "", "save the combined text to this file")
	flag.IntVar(&opts.history, "history", 0, "print the N most recent history entries and exit")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to read .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jpocr: %v\n", err)
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, opts options) (int, error) {
	if opts.image == "" && opts.history <= 0 {
		fmt.Fprintln(os.Stderr, "usage: jpocr -image <file> [-translate <lang>] [-all] [-json] [-out <file>] [-enqueue] | -history <n>")
		return 2, nil
	}

	if opts.enqueue {
		return enqueue(ctx, cfg, opts)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return 1, err
	}
	defer a.Close()

	if opts.history > 0 {
		return printHistory(ctx, a, opts.history)
	}

	prefs := a.Settings.Get()
	resp, err := a.Service.ProcessImage(ctx, &processor.ProcessRequest{
		ImagePath:   opts.image,
		Filename:    filepath.Base(opts.image),
		TranslateTo: opts.translate,
		IncludeAll:  opts.all || prefs.IncludeNonJapanese,
	})
	if err != nil {
		return 1, err
	}

	if opts.out != "" && resp.Result.Success {
		if err := processor.SaveText(opts.out, resp.Result.CombinedText); err != nil {
			return 1, err
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return 1, err
		}
	} else {
		printResponse(resp, prefs.ShowConfidence, prefs.ShowProcessingTime)
	}

	if !resp.Result.Success {
		return 1, nil
	}
	return 0, nil
}

func printResponse(resp *processor.ProcessResponse, showConfidence, showTime bool) {
	result := resp.Result
	if !result.Success {
		fmt.Fprintf(os.Stderr, "%s\n", result.ErrorMessage)
	}

	if len(resp.AllResults) > 0 {
		for i, r := range resp.AllResults {
			tag := "  "
			if r.IsJapanese {
				tag = "JA"
			}
			fmt.Printf("%3d [%s] %.2f  %s\n", i+1, tag, r.Confidence, r.Text)
		}
		fmt.Println()
	} else if showConfidence {
		for _, r := range result.Results {
			fmt.Printf("%.2f  %s\n", r.Confidence, r.Text)
		}
		fmt.Println()
	}

	if result.Success {
		fmt.Println(result.CombinedText)
	}
	if resp.Translation != "" {
		fmt.Printf("\n[%s] %s\n", resp.TranslatedTo, resp.Translation)
	}
	if showTime && result.ProcessingTime != nil {
		fmt.Fprintf(os.Stderr, "processed in %v\n", result.ProcessingTime.Round(time.Millisecond))
	}
}

func printHistory(ctx context.Context, a *app.App, limit int) (int, error) {
	entries, err := a.Storage.List(ctx, limit)
	if err != nil {
		return 1, err
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = e.ErrorMessage
		}
		fmt.Printf("%s  %-24s  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Filename, status, e.Text)
	}
	return 0, nil
}

func enqueue(ctx context.Context, cfg *config.Config, opts options) (int, error) {
	data, err := os.ReadFile(opts.image)
	if err != nil {
		return 1, fmt.Errorf("failed to read image: %w", err)
	}
	payload := queue.JobPayload{
		ImageBuffer: data,
		Filename:    filepath.Base(opts.image),
		TranslateTo: opts.translate,
		IncludeAll:  opts.all,
	}

	var id string
	switch cfg.QueueBackend {
	case config.QueueAsynq:
		e, err := queue.NewEnqueuer(cfg.RedisURL, cfg.QueueName)
		if err != nil {
			return 1, err
		}
		defer e.Close()
		id, err = e.Enqueue(ctx, payload, queue.DefaultMaxRetries)
		if err != nil {
			return 1, err
		}
	default:
		e, err := queue.NewRedisEnqueuer(cfg.RedisURL, cfg.QueueName)
		if err != nil {
			return 1, err
		}
		defer e.Close()
		id, err = e.Enqueue(ctx, payload, queue.DefaultMaxRetries)
		if err != nil {
			return 1, err
		}
	}

	fmt.Println(id)
	return 0, nil
}
