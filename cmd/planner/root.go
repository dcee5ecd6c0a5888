package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/npezzotti/go-tripplanner/internal/client"
	"github.com/npezzotti/go-tripplanner/internal/config"
	"github.com/npezzotti/go-tripplanner/internal/planner"
	"github.com/spf13/cobra"
)

var (
	countriesPath string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "planner",
	Short:         "collaborative trip planning from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&countriesPath, "countries", config.Getenv("PLANNER_COUNTRIES", ""), "GeoJSON file with country polygons for camera framing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log sync activity to stderr")

	rootCmd.AddCommand(createCmd, joinCmd, leaveCmd, roomsCmd, watchCmd, countryCmd, opportunityCmd, backCmd, sayCmd)
}

// app bundles what every command needs: config, a logged in client and the
// static datasets for a session.
type app struct {
	log    *log.Logger
	cfg    *config.ClientConfig
	client *client.Client
}

func newApp(ctx context.Context) (*app, error) {
	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}
	logger := log.New(out, "[planner] ", log.LstdFlags)

	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("PLANNER_EMAIL and PLANNER_PASSWORD must be set")
	}

	c, err := client.New(logger, cfg.APIURL)
	if err != nil {
		return nil, err
	}

	if _, err := c.Login(ctx, cfg.Email, cfg.Password); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	return &app{log: logger, cfg: cfg, client: c}, nil
}

func (a *app) Close() error {
	return a.client.Close()
}

func (a *app) sessionConfig(ctx context.Context) planner.SessionConfig {
	cfg := planner.SessionConfig{
		Backend:      a.client,
		Catalog:      a.loadCatalog(ctx),
		Countries:    a.loadCountries(),
		PollInterval: a.cfg.PollInterval,
		Logger:       a.log,
	}
	if a.cfg.RankingURL != "" {
		cfg.Ranker = planner.NewRankingClient(a.cfg.RankingURL, &http.Client{Timeout: 10 * time.Second})
	}
	return cfg
}

// loadCatalog falls back to an empty catalog; a session still works without
// opportunities.
func (a *app) loadCatalog(ctx context.Context) *planner.Catalog {
	body, err := a.client.GetOpportunities(ctx)
	if err != nil {
		a.log.Println("opportunities unavailable:", err)
		return planner.NewCatalog(nil)
	}
	defer body.Close()

	catalog, err := planner.LoadCatalog(a.log, body)
	if err != nil {
		a.log.Println("opportunities:", err)
		return planner.NewCatalog(nil)
	}
	return catalog
}

func (a *app) loadCountries() *planner.Countries {
	if countriesPath == "" {
		return nil
	}

	f, err := os.Open(countriesPath)
	if err != nil {
		a.log.Println("countries:", err)
		return nil
	}
	defer f.Close()

	countries, err := planner.LoadCountries(f)
	if err != nil {
		a.log.Println("countries:", err)
		return nil
	}
	return countries
}

// withSession mounts roomCode, runs fn and unmounts.
func withSession(cmd *cobra.Command, roomCode string, fn func(ctx context.Context, s *planner.Session) error) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	errs := make(chan error, 1)
	s, err := planner.Mount(ctx, roomCode, a.client.UserId(), a.sessionConfig(ctx), planner.SessionEvents{
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("open room %s: %w", roomCode, err)
	}
	defer s.Unmount()

	if err := fn(ctx, s); err != nil {
		return err
	}

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
