package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/menta2k/ecoscan"
	"github.com/menta2k/ecoscan/internal/config"
	"github.com/menta2k/ecoscan/pkg/transport"
)

func main() {
	var in, url, user, cfgPath string
	var timeout time.Duration
	var maxBytes int64
	var width int
	var quality, step, minQuality float64
	var listCenters bool

	flag.StringVar(&in, "in", "", "input image path (jpg/png/webp)")
	flag.StringVar(&url, "url", "", "backend base URL (default http://localhost:5000)")
	flag.StringVar(&user, "user", "", "username sent with the upload")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON)")
	flag.DurationVar(&timeout, "timeout", 0, "upload timeout (default 60s)")
	flag.Int64Var(&maxBytes, "maxbytes", 0, "transport byte budget (default 8 MiB)")
	flag.IntVar(&width, "width", 0, "max upload width in pixels (default 1600)")
	flag.Float64Var(&quality, "quality", 0, "initial JPEG quality 0-1 (default 0.92)")
	flag.Float64Var(&step, "step", 0, "quality decrement per re-encode pass (default 0.07)")
	flag.Float64Var(&minQuality, "minq", 0, "minimum JPEG quality 0-1 (default 0.35)")
	flag.BoolVar(&listCenters, "centers", false, "list recycling centers instead of analyzing")

	flag.Parse()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if url != "" {
		cfg.Backend.BaseURL = url
	}
	if user != "" {
		cfg.Backend.Username = user
	}
	if timeout > 0 {
		cfg.Backend.UploadTimeout = timeout
	}
	if maxBytes > 0 {
		cfg.Encoding.MaxBytes = maxBytes
	}
	if width > 0 {
		cfg.Encoding.MaxWidthPx = width
	}
	if quality > 0 {
		cfg.Encoding.InitialQuality = quality
	}
	if step > 0 {
		cfg.Encoding.QualityStep = step
	}
	if minQuality > 0 {
		cfg.Encoding.MinQuality = minQuality
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	client := ecoscan.NewWithConfig(cfg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if listCenters {
		centers, err := client.Centers(ctx)
		if err != nil {
			log.Fatalf("centers: %v", err)
		}
		for _, c := range centers {
			fmt.Printf("%d\t%s\t%s\n", c.ID, c.Name, c.Address)
		}
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in input.jpg [-url http://host:5000] [-user name] [-centers]",
			filepath.Base(os.Args[0]))
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionClearOnFinish(),
	)
	onProgress := transport.ProgressFunc(func(fraction float64) {
		_ = bar.Set(int(fraction * 100))
	})

	result, err := client.AnalyzeFile(ctx, in, onProgress)
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrTimeout):
			log.Fatalf("upload timed out after %s; the backend never answered", cfg.Backend.UploadTimeout)
		case isNetworkError(err):
			log.Fatalf("backend unreachable: %v", err)
		default:
			log.Fatalf("analyze: %v", err)
		}
	}

	js, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode result: %v", err)
	}
	fmt.Println(string(js))
}

func isNetworkError(err error) bool {
	var netErr *transport.NetworkError
	return errors.As(err, &netErr)
}
