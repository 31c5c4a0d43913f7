// Command bot is a headless player. It logs in, wanders the maze with random
// inputs and logs what it sees.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/earthtowalt/hide-and-seek/client"
	"github.com/earthtowalt/hide-and-seek/config"
	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/logger"
	"github.com/earthtowalt/hide-and-seek/maze"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/transport"
)

const (
	steerInterval  = time.Second
	reportInterval = 5 * time.Second
)

var directions = []game.InputSet{
	0,
	game.InputUp,
	game.InputDown,
	game.InputLeft,
	game.InputRight,
	game.InputUp | game.InputLeft,
	game.InputUp | game.InputRight,
	game.InputDown | game.InputLeft,
	game.InputDown | game.InputRight,
}

func main() {
	appLogger, _ := logger.New("BOT", config.ColorPurple, os.Stdout)

	envs, err := config.Load()
	if err != nil {
		appLogger.Error(fmt.Sprintf("Loading configuration: %v", err))
		os.Exit(1)
	}

	username := os.Getenv("BOT_NAME")
	if username == "" {
		username = "bot-" + uuid.NewString()[:8]
	}

	if err := run(envs, username, appLogger); err != nil {
		appLogger.Error(err.Error())
		os.Exit(1)
	}
}

func run(envs config.Config, username string, appLogger *logger.Logger) error {
	generator, err := maze.New(envs.MapSize, envs.MapCellSize)
	if err != nil {
		return fmt.Errorf("creating maze generator: %w", err)
	}
	server, err := transport.ResolveAddr(envs.ServerAddr)
	if err != nil {
		return fmt.Errorf("resolving server: %w", err)
	}
	socket, err := transport.Listen(":0")
	if err != nil {
		return err
	}

	c, err := client.New(client.Config{
		Username:     username,
		Server:       server,
		Socket:       socket,
		Codec:        protocol.NewCodec(envs.MaxPacket),
		MapGenerator: generator.Generate,
		Logger:       appLogger,
	})
	if err != nil {
		_ = socket.Close()
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if err := c.Login(); err != nil {
		return err
	}
	appLogger.Info(fmt.Sprintf("logging in to %s as %s", server, username))

	predict := time.NewTicker(envs.TickInterval())
	defer predict.Stop()
	steer := time.NewTicker(steerInterval)
	defer steer.Stop()
	report := time.NewTicker(reportInterval)
	defer report.Stop()

	for {
		select {
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case <-predict.C:
			c.Predict()
		case <-steer.C:
			if err := c.SetInputs(directions[rand.IntN(len(directions))]); err != nil {
				appLogger.Warning(fmt.Sprintf("sending inputs: %v", err))
			}
		case <-report.C:
			v := c.View()
			if v.Self < 0 {
				appLogger.Info(fmt.Sprintf("%s: not in the game yet", v.State))
				continue
			}
			me := v.Players[v.Self]
			appLogger.Info(fmt.Sprintf("%s: %s at (%.0f, %.0f), score %d, %d players, map %d",
				v.State, me.Role, me.X, me.Y, me.Score, len(v.Players), v.MapSeed))
		}
	}
}
