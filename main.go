// Command stop-ultra runs the Stop Ultra word game.
//
// It supports four modes:
//  1. "play" – joins or creates a room and plays from the terminal
//  2. "serve" – runs a local room server (registry + realtime endpoint),
//     optionally exposed through an ngrok tunnel
//  3. "bots" – seats automated players in a room
//  4. "mcp" – runs an MCP stdio server so an AI agent can sit at the table
//
// Global flags select the config file, server URL, state directory and debug
// logging. Every flag can also be set from the environment or a .env file.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/stop-ultra/api"
	"github.com/wricardo/stop-ultra/game/bot"
	"github.com/wricardo/stop-ultra/game/config"
	"github.com/wricardo/stop-ultra/game/identity"
	"github.com/wricardo/stop-ultra/game/service"
	"github.com/wricardo/stop-ultra/transport/mcp"
	"github.com/wricardo/stop-ultra/transport/registry"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Stop Ultra"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdin, os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. in and out back the play REPL.
func newApp(in io.Reader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "stop-ultra",
		Usage:   "Play Stop, the moderator-driven word game",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "JSON config file (optional)",
				Sources: cli.EnvVars("STOP_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Game server base URL",
				Sources: cli.EnvVars("STOP_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:    "state-dir",
				Usage:   "Directory for the device identity",
				Sources: cli.EnvVars("STOP_STATE_DIR"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("STOP_DEBUG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "play",
				Usage: "Play from the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "nickname",
						Aliases: []string{"n"},
						Usage:   "Join or create a room right away with this nickname",
						Sources: cli.EnvVars("STOP_NICKNAME"),
					},
					&cli.StringFlag{
						Name:    "room",
						Aliases: []string{"r"},
						Usage:   "Room code to join; a new room is created when empty",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runPlay(ctx, cmd, in, out)
				},
			},
			{
				Name:  "serve",
				Usage: "Run a local room server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Value:   ":8000",
						Usage:   "HTTP listen address",
						Sources: cli.EnvVars("STOP_ADDR"),
					},
					&cli.BoolFlag{
						Name:    "ngrok",
						Usage:   "Expose the server through an ngrok tunnel",
						Sources: cli.EnvVars("NGROK_ENABLED"),
					},
					&cli.StringFlag{
						Name:    "ngrok-auth",
						Usage:   "Ngrok auth token",
						Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "ngrok-domain",
						Usage:   "Custom ngrok domain (optional)",
						Sources: cli.EnvVars("NGROK_DOMAIN"),
					},
				},
				Action: runServe,
			},
			{
				Name:  "bots",
				Usage: "Seat bot players in a room",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "room",
						Aliases:  []string{"r"},
						Usage:    "Room code to join",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "count",
						Value: 2,
						Usage: "Number of bots",
					},
					&cli.DurationFlag{
						Name:  "think",
						Value: bot.DefaultThink,
						Usage: "Pause between bot moves",
					},
				},
				Action: runBots,
			},
			{
				Name:   "mcp",
				Usage:  "Run an MCP stdio server that plays as one player",
				Action: runMCP,
			},
		},
	}
}

// loadConfig resolves the config file and applies flag overrides
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("server") {
		cfg.ServerURL = cmd.String("server")
	}
	if cmd.IsSet("state-dir") {
		cfg.StateDir = cmd.String("state-dir")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a development logger with --debug and a production one
// otherwise. Both write to stderr. Quiet loggers keep only warnings so they
// do not interleave with the player's terminal.
func newLogger(debug, quiet bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if quiet {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// setup loads config and logging shared by the player commands
func setup(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cmd.Bool("debug"), true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newGameClient wires identity, registry and transport into a client
func newGameClient(cfg *config.Config, logger *zap.Logger) *service.Client {
	clientID := identity.NewStore(cfg.StateDir, logger).GetOrCreate()

	return service.NewClient(service.Options{
		Config:   cfg,
		ClientID: clientID,
		Registry: registry.NewClient(cfg.HTTPBaseURL(), time.Duration(cfg.HTTPTimeout), logger),
		Logger:   logger,
	})
}

// runServe starts the room server and, when enabled, an ngrok tunnel
func runServe(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("debug"), false)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiServer := api.NewServer(api.NewRooms(logger), logger)
	go apiServer.Hub().Run(ctx)

	addr := cmd.String("addr")
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     apiServer,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("registry", "POST /create-room, POST /check-room"),
			zap.String("websocket", "/ws/{room_id}/{client_id}"))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
			cancel()
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), apiServer, logger)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// serveNgrok exposes handler on a public URL until ctx is cancelled
func serveNgrok(ctx context.Context, authToken, domain string, handler http.Handler, logger *zap.Logger) {
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	logger.Info("ngrok tunnel established", zap.String("url", tun.URL()),
		zap.String("players", "stop-ultra --server "+tun.URL()+" play"))

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", zap.Error(err))
	}
}

// runBots joins count bots to a room and lets them play until interrupted.
// Bots get fresh identities so they never collide with the local player.
func runBots(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	count := int(cmd.Int("count"))
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 1; i <= count; i++ {
		nickname := fmt.Sprintf("Bot %d", i)
		botLogger := logger.With(zap.String("bot", nickname))

		client := service.NewClient(service.Options{
			Config:   cfg,
			ClientID: identity.NewStore("", botLogger).GetOrCreate(),
			Registry: registry.NewClient(cfg.HTTPBaseURL(), time.Duration(cfg.HTTPTimeout), botLogger),
			Logger:   botLogger,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Run(ctx)
		}()

		if err := client.JoinRoom(ctx, cmd.String("room"), nickname); err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("%s could not join: %w", nickname, err)
		}

		player := bot.New(client, bot.Options{Think: cmd.Duration("think"), Logger: botLogger})
		wg.Add(1)
		go func() {
			defer wg.Done()
			player.Run(ctx)
		}()
	}

	fmt.Printf("Seated %d bots in %s. Press Ctrl-C to stop.\n", count, strings.ToUpper(cmd.String("room")))
	<-ctx.Done()
	wg.Wait()
	return nil
}

// runMCP plays as one player on behalf of an MCP client over stdio
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := newGameClient(cfg, logger)
	go client.Run(ctx)

	logger.Info("MCP stdio server ready", zap.String("server", cfg.ServerURL))
	if err := mcp.NewServer(client, logger).ServeStdio(); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runPlay runs the terminal client
func runPlay(ctx context.Context, cmd *cli.Command, in io.Reader, out io.Writer) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := newGameClient(cfg, logger)
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	r := &repl{game: client, out: out}
	go r.watch(ctx, client.Notifications())

	fmt.Fprintf(out, "%s v%s connected to %s. Type 'help' for commands.\n", AppName, Version, cfg.ServerURL)

	if nickname := cmd.String("nickname"); nickname != "" {
		line := "create " + nickname
		if room := cmd.String("room"); room != "" {
			line = "join " + room + " " + nickname
		}
		if _, err := r.execute(ctx, line); err != nil {
			return err
		}
	}

	return r.run(ctx, in)
}

// repl maps terminal commands onto game operations
type repl struct {
	game service.GameClient

	mu  sync.Mutex
	out io.Writer
}

const helpText = `Commands:
  create <nickname>         Create a room and join as host
  join <room> <nickname>    Join a room
  leave                     Leave the room
  state                     Show the room and round
  start [seconds]           Start the game (host)
  spin                      Spin for a letter (moderator)
  go                        Start the round (moderator)
  answer <word>             Submit your answer
  stop                      End the round (moderator)
  winner <nickname|id>      Pick the round winner (moderator)
  restart                   Replay the round (moderator)
  next                      Continue to the next round (moderator)
  end                       End the game (moderator)
  lobby                     Back to the lobby (host)
  away | back               Pause or resume the connection
  quit                      Exit`

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// run reads commands until quit, EOF or cancellation
func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := r.execute(ctx, scanner.Text())
		if err != nil {
			r.printf("Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// execute runs one command line
func (r *repl) execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	command, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.Join(args, " ")

	switch command {
	case "help", "?":
		r.printf("%s\n", helpText)

	case "quit", "exit":
		return true, nil

	case "create":
		roomID, err := r.game.CreateRoom(ctx, rest)
		if err != nil {
			return false, err
		}
		r.printf("Room %s created. Share the code with the other players.\n", roomID)

	case "join":
		if len(args) < 2 {
			return false, errors.New("usage: join <room> <nickname>")
		}
		if err := r.game.JoinRoom(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return false, err
		}
		r.printf("Joining %s...\n", strings.ToUpper(args[0]))

	case "leave":
		return false, r.game.LeaveRoom(ctx)

	case "state":
		snap, err := r.game.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		r.printf("%s", service.FormatSnapshot(snap))

	case "start":
		seconds := 0
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return false, fmt.Errorf("invalid time limit %q", rest)
			}
			seconds = n
		}
		return false, r.game.StartGame(ctx, seconds)

	case "spin":
		return false, r.game.Spin(ctx)

	case "go":
		return false, r.game.StartRound(ctx)

	case "answer":
		if err := r.game.SubmitAnswer(ctx, rest); err != nil {
			return false, err
		}
		r.printf("Answer sent.\n")

	case "stop":
		return false, r.game.ForceEndRound(ctx)

	case "winner":
		winnerID, err := r.resolvePlayer(ctx, rest)
		if err != nil {
			return false, err
		}
		return false, r.game.SelectWinner(ctx, winnerID)

	case "restart":
		return false, r.game.RestartRound(ctx)

	case "next":
		return false, r.game.ContinueGame(ctx)

	case "end":
		return false, r.game.EndGame(ctx)

	case "lobby":
		return false, r.game.ReturnToLobby(ctx)

	case "away":
		return false, r.game.SetVisible(ctx, false)

	case "back":
		return false, r.game.SetVisible(ctx, true)

	default:
		return false, fmt.Errorf("unknown command %q (type 'help')", command)
	}

	return false, nil
}

// resolvePlayer accepts a client id or a nickname
func (r *repl) resolvePlayer(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("usage: winner <nickname|id>")
	}
	snap, err := r.game.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range snap.Players {
		if p.ID == name || strings.EqualFold(p.Nickname, name) {
			return p.ID, nil
		}
	}
	return name, nil
}

// watch prints notifications as they arrive
func (r *repl) watch(ctx context.Context, notifications <-chan service.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notifications:
			if msg := describe(n); msg != "" {
				r.printf("* %s\n", msg)
			}
		}
	}
}

// describe renders a notification for the terminal, or "" to stay quiet
func describe(n service.Notification) string {
	switch n := n.(type) {
	case service.ConnectionChanged:
		switch n.State {
		case service.Open:
			return "Connected."
		case service.ClosedUnexpected:
			return "Connection lost."
		}
	case service.RosterUpdated:
		names := make([]string, len(n.Players))
		for i, p := range n.Players {
			names[i] = fmt.Sprintf("%s (%d)", p.Nickname, p.Score)
		}
		return "Players: " + strings.Join(names, ", ")
	case service.PhaseChanged:
		if n.Round > 0 {
			return fmt.Sprintf("%s (round %d). Type 'state' for details.", n.Phase, n.Round)
		}
		return fmt.Sprintf("%s. Type 'state' for details.", n.Phase)
	case service.CountdownTick:
		if n.Remaining == 10 || (n.Remaining <= 3 && n.Remaining >= 0) {
			return fmt.Sprintf("%ds left", n.Remaining)
		}
	case service.ReturnedHome:
		return "Left the room."
	}
	return ""
}
