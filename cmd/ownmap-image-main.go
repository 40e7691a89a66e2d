package main

import (
	"context"
	"fmt"
	"image/png"
	"io/ioutil"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-image/cachebust"
	"github.com/jamesrr39/ownmap-image/imagefetch"
	"github.com/jamesrr39/ownmap-image/mapdocument"
	"github.com/jamesrr39/ownmap-image/maprasterer"
	"github.com/jamesrr39/ownmap-image/webservices"
	"github.com/pkg/profile"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	DEFAULT_PORT                   = 9000
	DEFAULT_MAX_CONCURRENT_EXPORTS = 4
	DEFAULT_IMAGE_CACHE_SIZE       = 512
	DEFAULT_FETCH_TIMEOUT          = time.Second * 30
)

var logger *logpkg.Logger

func main() {
	verbose := kingpin.Flag("v", "verbose logging").Bool()
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupExport()
	setupServe()

	kingpin.Parse()
}

type fetchFlags struct {
	imageCacheSize           *int
	fetchTimeout             *time.Duration
	maxConcurrentTileFetches *int
}

func addFetchFlags(cmd *kingpin.CmdClause) *fetchFlags {
	return &fetchFlags{
		imageCacheSize:           cmd.Flag("image-cache-size", "amount of decoded tiles and icons to keep in memory (0 = no cache)").Default(fmt.Sprintf("%d", DEFAULT_IMAGE_CACHE_SIZE)).Int(),
		fetchTimeout:             cmd.Flag("fetch-timeout", "timeout for fetching one tile or image").Default(DEFAULT_FETCH_TIMEOUT.String()).Duration(),
		maxConcurrentTileFetches: cmd.Flag("max-concurrent-tile-fetches", "maximum amount of tiles of one layer fetched at once (0 = no limit)").Default("0").Int(),
	}
}

// createExporter creates the exporter. Every export gets its own cache token, the time it started.
func createExporter(flags *fetchFlags) (*maprasterer.Exporter, errorsx.Error) {
	client := &http.Client{
		Timeout: *flags.fetchTimeout,
	}

	fetcher, err := imagefetch.NewHTTPFetcher(logger, client, *flags.imageCacheSize)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	options := maprasterer.Options{
		MaxConcurrentTileFetches: *flags.maxConcurrentTileFetches,
	}

	return maprasterer.NewExporter(logger, fetcher, cachebust.NewTimestampTokens(), options), nil
}

func setupExport() {
	cmd := kingpin.Command("export", "export a map document to a PNG image")
	documentPath := cmd.Arg("document", "map document to export (JSON, YAML or TOML)").Required().String()
	outPath := cmd.Flag("out", "file to write the PNG image to").Short('o').Default("map.png").String()
	shouldProfile := cmd.Flag("profile", "profile the export performance").Bool()
	flags := addFetchFlags(cmd)
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			if *shouldProfile {
				defer profile.Start(profile.ProfilePath(filepath.Dir(*outPath)), profile.CPUProfile).Stop()
			}

			startTime := time.Now()

			doc, err := mapdocument.Load(*documentPath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			view, err := mapdocument.NewView(logger, doc)
			if err != nil {
				return errorsx.Wrap(err)
			}

			exporter, err := createExporter(flags)
			if err != nil {
				return errorsx.Wrap(err)
			}

			signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			img, err := exporter.Export(signalCtx, view)
			if err != nil {
				return errorsx.Wrap(err)
			}

			file, fileErr := os.Create(*outPath)
			if fileErr != nil {
				return errorsx.Wrap(fileErr)
			}
			defer file.Close()

			fileErr = png.Encode(file, img)
			if fileErr != nil {
				return errorsx.Wrap(fileErr)
			}

			logger.Info("wrote %q in %s", *outPath, time.Since(startTime))

			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve the export API")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf(":%d", DEFAULT_PORT)).String()
	maxConcurrentExports := cmd.Flag("max-concurrent-exports", "maximum amount of exports running at once").Default(fmt.Sprintf("%d", DEFAULT_MAX_CONCURRENT_EXPORTS)).Uint()
	traceDir := cmd.Flag("trace-dir", "directory to write request traces to. A temporary directory is used if not given").String()
	shouldProfile := cmd.Flag("profile", "profile the request performance").Bool()
	flags := addFetchFlags(cmd)
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			exporter, err := createExporter(flags)
			if err != nil {
				return errorsx.Wrap(err)
			}

			router, err := createServer(exporter, *traceDir, *maxConcurrentExports, *shouldProfile)
			if err != nil {
				return errorsx.Wrap(err)
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = *addr
			server.Handler = router

			logger.Info("about to start serving on %q", *addr)

			listenErr := server.ListenAndServe()
			if listenErr != nil {
				return errorsx.Wrap(listenErr)
			}
			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

func createServer(exporter *maprasterer.Exporter, traceDirPath string, maxConcurrentExports uint, shouldProfile bool) (chi.Router, errorsx.Error) {
	var err error

	if traceDirPath == "" {
		traceDirPath, err = ioutil.TempDir("", "")
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	traceFilePath := filepath.Join(traceDirPath, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := os.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, maxConcurrentExports))
		r.Mount("/export", webservices.NewExportService(logger, exporter, maxConcurrentExports, shouldProfile))
	})

	return router, nil
}
