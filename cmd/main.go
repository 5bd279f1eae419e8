package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opd-ai/bookmaker/bookcompiler"
	"github.com/opd-ai/bookmaker/config"
	"github.com/opd-ai/bookmaker/manifest"
	"github.com/opd-ai/bookmaker/srv"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config  string `short:"c" help:"Configuration file path" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
}

// BuildCmd compiles a book directory into a PDF.
type BuildCmd struct {
	Dir    string `arg:"" help:"Book directory containing ${manifest}" type:"existingdir"`
	Output string `short:"o" help:"Output PDF path (defaults to <dir>/<dir name>.pdf)" type:"path"`
}

func (c *BuildCmd) Run(cfg *config.Config) error {
	book, err := manifest.Load(c.Dir)
	if err != nil {
		return err
	}

	out := c.Output
	if out == "" {
		out = filepath.Join(c.Dir, filepath.Base(filepath.Clean(c.Dir))+".pdf")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append(cfg.CompilerOptions(),
		bookcompiler.WithLogger(log.Logger),
		bookcompiler.WithProgress(logEvent),
	)
	res, err := bookcompiler.NewBookCompiler(opts...).Compile(ctx, book, out)
	if err != nil {
		return err
	}

	for _, entry := range res.Index {
		log.Debug().Int("chapter", entry.Ordinal+1).Str("title", entry.Title).Int("start_page", entry.StartPage).Msg("toc entry")
	}
	fmt.Println(res.Path)
	return nil
}

func logEvent(ev bookcompiler.Event) {
	if ev.Kind == bookcompiler.EventChapter {
		log.Debug().
			Str("event", string(ev.Kind)).
			Int("chapter", ev.Chapter+1).
			Str("title", ev.Title).
			Int("start_page", ev.StartPage).
			Int("pages", ev.Pages).
			Msg("progress")
		return
	}
	log.Info().Str("event", string(ev.Kind)).Int("pages", ev.Pages).Msg("progress")
}

// ServeCmd runs the HTTP service.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides server.addr)"`
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	server := cfg.Server
	if c.Addr != "" {
		server.Addr = c.Addr
	}

	s, err := srv.New(server, cfg.CompilerOptions(), log.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// PagesCmd prints the page count of a PDF.
type PagesCmd struct {
	File string `arg:"" help:"PDF file" type:"existingfile"`
}

func (c *PagesCmd) Run() error {
	n, err := bookcompiler.CountPages(c.File)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.File, err)
	}
	fmt.Println(n)
	return nil
}

var cli struct {
	Globals

	Build BuildCmd `cmd:"" help:"Compile a book directory into a PDF"`
	Serve ServeCmd `cmd:"" help:"Run the book generation HTTP service"`
	Pages PagesCmd `cmd:"" help:"Print the page count of a PDF"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("bookmaker"),
		kong.Description("Compile books with a cover, chapters and a table of contents into PDF."),
		kong.UsageOnError(),
		kong.Vars{"manifest": manifest.FileName},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bookmaker: %v\n", err)
		os.Exit(1)
	}
	if cli.Verbose {
		cfg.Log.Level = zerolog.LevelDebugValue
	}
	log.Logger = cfg.Log.Logger(os.Stderr)

	if err := ctx.Run(cfg); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
