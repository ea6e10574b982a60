package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"studytimer/backend/internal/clock"
	"studytimer/backend/internal/db"
	"studytimer/backend/internal/logging"
	"studytimer/backend/internal/repository"
	"studytimer/backend/internal/service"
	"studytimer/backend/internal/sound"
	"studytimer/backend/internal/tui"
)

const localUserEmail = "local@studytimer"

type CLI struct {
	Goal     string `help:"ID of the goal to study." required:""`
	DB       string `help:"Path to the SQLite database." env:"DB_PATH" default:"./data/studytimer.db" type:"path"`
	Email    string `help:"Account the local timer belongs to." env:"STUDYTIMER_EMAIL" default:"${localUserEmail}"`
	NoSound  bool   `help:"Ring the terminal bell instead of playing system sounds."`
	Debug    bool   `help:"Write debug logs to --log-file."`
	LogFile  string `help:"Log destination." default:"./data/studytimer.log" type:"path"`
	Timezone string `help:"Zone used to bucket study time into days." env:"STATS_TIMEZONE" default:"UTC"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("studytimer"),
		kong.Description("A resumable study timer with optional Pomodoro cycling."),
		kong.Vars{"localUserEmail": localUserEmail},
		kong.UsageOnError(),
	)

	err := cli.Run()
	kctx.FatalIfErrorf(err)
}

func (c *CLI) Run() error {
	var logOut io.Writer = io.Discard
	if c.Debug {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logging.Initialize("debug", "text", logOut)

	location, err := loadLocation(c.Timezone)
	if err != nil {
		return err
	}

	database, err := db.OpenSQLite(c.DB)
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.RunMigrations(database, db.MigrationSource("")); err != nil {
		return err
	}

	ctx := context.Background()
	clk := clock.NewReal()

	var playerOpts []sound.Option
	if c.NoSound {
		playerOpts = append(playerOpts, sound.BellOnly())
	}
	player := sound.NewPlayer(playerOpts...)

	userRepo := repository.NewUserRepository(database)
	goalRepo := repository.NewGoalRepository(database)

	authService := service.NewAuthService(userRepo, "", 0)
	user, apiErr := authService.EnsureLocalUser(ctx, c.Email)
	if apiErr != nil {
		return fmt.Errorf("local user: %w", apiErr)
	}

	timerService := service.NewTimerService(service.TimerServiceDeps{
		KV:        repository.NewKVRepository(database),
		Goals:     goalRepo,
		Sessions:  repository.NewSessionRepository(database),
		Progress:  repository.NewProgressRepository(database),
		Notifiers: player,
		Clock:     clk,
		Location:  location,
	})
	defer timerService.Close()

	goalService := service.NewGoalService(goalRepo, timerService, clk, location)
	goal, apiErr := goalService.Get(ctx, user.ID, c.Goal)
	if apiErr != nil {
		return fmt.Errorf("goal %s: %w", c.Goal, apiErr)
	}

	p := tea.NewProgram(
		tui.New(ctx, timerService.UserTimer(ctx, user.ID), goal.ID, goal.Title),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)

	logging.Logger.Info("starting terminal timer", "goal_id", goal.ID, "user_id", user.ID)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return location, nil
}
