package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/micropub/internal/agent"
	"github.com/debemdeboas/micropub/internal/auth"
	"github.com/debemdeboas/micropub/internal/cli"
	"github.com/debemdeboas/micropub/internal/config"
	"github.com/debemdeboas/micropub/internal/db"
	"github.com/debemdeboas/micropub/internal/logger"
	"github.com/debemdeboas/micropub/internal/media"
	"github.com/debemdeboas/micropub/internal/micropub"
	"github.com/debemdeboas/micropub/internal/publish"
	"github.com/debemdeboas/micropub/internal/render"
	"github.com/debemdeboas/micropub/internal/repository"
	"github.com/debemdeboas/micropub/internal/util/compression"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Error loading .env file:", err)
	}

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := a.run(os.Args[1:])
	a.close()

	if err == nil || errors.Is(err, cli.ErrHelp) {
		return
	}
	printError(os.Stderr, err)
	os.Exit(1)
}

// app carries the global flags and the lazily built services of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	profile    string
	logLevel   string
	jsonOutput bool

	cfg     *config.Config
	log     zerolog.Logger
	drafts  *repository.FSDraftRepository
	tokens  *auth.Store
	engine  *publish.Engine
	closers []io.Closer
	now     func() time.Time

	lines *bufio.Reader
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
}

func (a *app) run(args []string) error {
	return a.rootCommand().Execute(a.stdout, args)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("Error closing resource")
		}
	}
	a.closers = nil
}

// setup loads the configuration and wires the engine. It runs once, after
// flag parsing, so the global flags are already applied.
func (a *app) setup() error {
	if a.engine != nil {
		return nil
	}

	path := a.configPath
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	} else {
		p, err := config.ExpandHome(path)
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	if a.profile != "" {
		cfg.DefaultProfile = a.profile
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.log = logger.NewWithWriter(a.stderr, cfg.Logging.Level)
	config.SetLogger(a.log.With().Str("component", "config").Logger())
	repository.SetLogger(a.log.With().Str("component", "repository").Logger())
	db.SetLogger(a.log.With().Str("component", "db").Logger())
	media.SetLogger(a.log.With().Str("component", "media").Logger())
	micropub.SetLogger(a.log.With().Str("component", "micropub").Logger())
	auth.SetLogger(a.log.With().Str("component", "auth").Logger())
	publish.SetLogger(a.log.With().Str("component", "publish").Logger())
	render.SetLogger(a.log.With().Str("component", "render").Logger())
	agent.SetLogger(a.log.With().Str("component", "agent").Logger())
	a.log.Debug().Str("config", path).Str("version", version).Msg("Configuration loaded")

	draftsDir, err := cfg.DraftsDir()
	if err != nil {
		return err
	}
	archiveDir, err := cfg.ArchiveDir()
	if err != nil {
		return err
	}
	a.drafts = repository.NewFSDraftRepository(draftsDir, archiveDir)
	if err := a.drafts.Init(); err != nil {
		return err
	}

	tokensDir, err := cfg.TokensDir()
	if err != nil {
		return err
	}
	a.tokens = auth.NewStore(cfg, tokensDir)

	httpClient := cfg.HTTP.Client()
	userAgent := cfg.HTTP.UserAgent

	engine, err := publish.NewEngine(publish.Options{
		Drafts:   a.drafts,
		History:  a.openHistory(),
		Auth:     a.tokens,
		Uploader: a.uploader(),
		Clients: func(endpoint, token string) publish.Client {
			return micropub.NewClient(httpClient, endpoint, token, userAgent)
		},
		Now: a.now,
	})
	if err != nil {
		return err
	}
	a.engine = engine
	return nil
}

// uploader routes http(s) media endpoints to multipart uploads and s3://
// endpoints to the configured bucket.
func (a *app) uploader() media.Uploader {
	router := &media.Router{HTTP: media.NewHTTPUploader(a.cfg.HTTP.Client(), a.cfg.HTTP.UserAgent)}

	for _, name := range a.cfg.ProfileNames() {
		if !strings.HasPrefix(a.cfg.Profiles[name].MediaEndpoint, media.S3Scheme) {
			continue
		}
		s3cfg := a.cfg.Media.S3
		up, err := media.NewS3Uploader(context.Background(), media.S3Options{
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Region:          s3cfg.Region,
			BaseEndpoint:    s3cfg.Endpoint,
			UsePathStyle:    s3cfg.PathStyle,
			PublicBaseURL:   s3cfg.PublicBaseURL,
		})
		if err != nil {
			a.log.Warn().Err(err).Str("profile", name).Msg("S3 media uploads are unavailable")
			break
		}
		router.S3 = up
		break
	}
	return router
}

// openHistory returns nil when history is disabled or cannot be opened;
// publishing works without it.
func (a *app) openHistory() repository.HistoryRepository {
	if !a.cfg.History.Enabled {
		return nil
	}

	path, err := a.cfg.HistoryDBPath()
	if err != nil {
		a.log.Warn().Err(err).Msg("History disabled")
		return nil
	}
	compressor, err := compression.ByName(a.cfg.History.Compression)
	if err != nil {
		a.log.Warn().Err(err).Msg("History disabled")
		return nil
	}

	sqlite := db.NewSQLite(path)
	if err := sqlite.InitDB(); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("History disabled")
		return nil
	}
	a.closers = append(a.closers, sqlite)
	return repository.NewDBHistoryRepository(sqlite, compressor)
}
