package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"book-binder/internal/config"
	"book-binder/internal/errors"
	"book-binder/internal/fonts"
	"book-binder/internal/logger"
	"book-binder/internal/pipeline"
	"book-binder/internal/results"
	"book-binder/internal/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		mode        = flag.String("mode", "pdf", "output mode: pdf, booklet, newspaper, odt, epub")
		pageSize    = flag.String("size", "", "named page size, e.g. A5, COMICBOOK (see -sizes)")
		trimWidth   = flag.Float64("trim-width", 0, "trim width in points, overrides -size")
		trimHeight  = flag.Float64("trim-height", 0, "trim height in points, overrides -size")
		gutter      = flag.Float64("gutter", 0, "binding gutter in points (booklet mode)")
		rotate      = flag.Bool("rotate", false, "rotate output 180 degrees for reversed binding")
		nup         = flag.Int("nup", 0, "pages per imposed sheet (newspaper mode)")
		columnWidth = flag.Float64("column-width", 0, "body column width in points (newspaper mode)")
		output      = flag.String("o", "", "output file path")
		configPath  = flag.String("config", "", "configuration file path")
		server      = flag.String("server", "", "book package server, overrides configuration")
		keepScratch = flag.Bool("keep-scratch", false, "keep the job scratch directory")
		verbose     = flag.Bool("v", false, "log to stderr as well as the log file")
		listBooks   = flag.Bool("list", false, "list bound books and exit")
		listFails   = flag.Bool("failures", false, "list failed jobs and exit")
		exportFails = flag.String("export-failures", "", "write failed book ids to a file and exit")
		fontSample  = flag.String("font-sample", "", "write a font sample sheet PDF and exit")
		listSizes   = flag.Bool("sizes", false, "list the page size catalogue and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *listSizes {
		for _, name := range config.PageSizeNames() {
			fmt.Println(name)
		}
		return 0
	}

	cfgMgr, err := config.NewManager(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	logConfig := logger.DefaultConfig()
	logConfig.LogFilePath = filepath.Join(filepath.Dir(cfgMgr.ConfigPath()), "book-binder.log")
	logConfig.EnableConsole = *verbose
	if *verbose {
		logConfig.Level = logger.LevelDebug
	}
	if err := logger.Init(logConfig); err != nil {
		fmt.Fprintln(os.Stderr, "error: cannot initialize logging:", err)
		return 1
	}
	defer logger.Close()

	if err := cfgMgr.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	cfg := cfgMgr.Get()
	cfg.PackageServer = cfgMgr.PackageServer()
	if *server != "" {
		cfg.PackageServer = *server
	}
	cfg.KeepScratch = *keepScratch

	failureMgr, err := errors.NewManager("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	resultMgr, err := results.NewManager("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *fontSample != "":
		return writeFontSample(ctx, cfg, *fontSample)
	case *listBooks:
		return printBooks(resultMgr)
	case *listFails:
		return printFailures(failureMgr)
	case *exportFails != "":
		if err := failureMgr.ExportBookIDs(*exportFails); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		return 0
	}

	if flag.NArg() != 1 {
		usage()
		return 2
	}
	bookRef := flag.Arg(0)

	outputMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	req := types.JobRequest{
		BookRef:     bookRef,
		Mode:        outputMode,
		PageSize:    *pageSize,
		TrimWidth:   *trimWidth,
		TrimHeight:  *trimHeight,
		Gutter:      *gutter,
		RotateFlip:  *rotate,
		NUp:         *nup,
		ColumnWidth: *columnWidth,
		OutputPath:  *output,
	}

	p := pipeline.New(cfg, func(s types.Status) {
		if s.Error != "" {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s: %s\n", s.Progress, s.Message, s.Error)
			return
		}
		fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", s.Progress, s.Message)
	})

	result, err := p.Run(ctx, req)
	if err != nil {
		stage := types.PhaseIdle
		diag := err.Error()
		if result != nil {
			stage = result.FailedStage
			diag = result.Diagnostic
		}
		_, seenBefore := failureMgr.Get(bookRef)
		failureMgr.Record(bookRef, "", bookRef, outputMode, stage, diag)
		if seenBefore {
			failureMgr.IncrementRetry(bookRef)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	stored, err := resultMgr.RecordArtifact(bookRef, "", bookRef, result.Format,
		result.ArtifactPath, result.TotalPages)
	if err != nil {
		logger.Warn("artifact not registered", logger.Err(err))
	} else {
		logger.Info("artifact registered", logger.String("path", stored))
	}
	failureMgr.Remove(bookRef)

	fmt.Println(result.ArtifactPath)
	if result.TotalPages > 0 {
		fmt.Fprintf(os.Stderr, "%d pages (%d front, %d body)\n",
			result.TotalPages, result.FrontPages, result.BodyPages)
	}
	return 0
}

func parseMode(s string) (types.OutputMode, error) {
	switch types.OutputMode(s) {
	case types.ModePDF, types.ModeBooklet, types.ModeNewspaper, types.ModeODT, types.ModeEpub:
		return types.OutputMode(s), nil
	}
	return "", fmt.Errorf("unknown output mode %q", s)
}

func writeFontSample(ctx context.Context, cfg *types.Config, outPath string) int {
	cache := fonts.NewCache(filepath.Join(cfg.CacheDir, "fonts.json"))
	if err := cache.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	list, err := cache.Fonts(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if err := fonts.WriteSampleSheet(list, outPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	fmt.Println(outPath)
	return 0
}

func printBooks(m *results.Manager) int {
	books, err := m.ListBooks()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	for _, info := range books {
		formats := make([]string, 0, len(info.Artifacts))
		for format := range info.Artifacts {
			formats = append(formats, string(format))
		}
		sort.Strings(formats)
		fmt.Printf("%s\t%s\t%s\t%s\n",
			info.BookID, info.Title, info.BoundAt.Format("2006-01-02 15:04"),
			strings.Join(formats, ","))
	}
	return 0
}

func printFailures(m *errors.Manager) int {
	for _, record := range m.List() {
		fmt.Printf("%s\t%s\t%s\tretries=%d\t%s\n",
			record.BookID, record.Stage, record.Timestamp.Format("2006-01-02 15:04"),
			record.RetryCount, record.Diagnostic)
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: book-binder [flags] <book>

<book> is a bookizip or EPUB path, a package URL, or a book id on the
configured package server.

Flags:
`)
	flag.PrintDefaults()
}
