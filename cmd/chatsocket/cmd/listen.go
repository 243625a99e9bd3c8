package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsarna/chatsocket/pkg/chatsocket"
	"github.com/tsarna/chatsocket/pkg/chatsocket/schedule"
	"go.uber.org/zap"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen [websocket-url]",
	Short: "Print participants joining and leaving a chat",
	Long: `Connect to a chat server and print one line per participant event:

  join	<username>
  leave	<username>

The WebSocket URL may be omitted when --config names an endpoint.
Announce blocks from the configuration are sent on their schedules until
the command exits.

Examples:
  chatsocket listen ws://localhost:8080/chat
  chatsocket listen --config chat.hcl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	urlArg, _ := splitURLArg(args)
	if len(args) == 1 && urlArg == "" {
		return fmt.Errorf("invalid WebSocket URL %q", args[0])
	}

	cfg, err := loadConfig(urlArg)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	sock, err := buildSocket(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Printers go in before connecting so no early frame is missed.
	registerPrinters(sock, cmd.OutOrStdout())

	if err := sock.Connect(ctx); err != nil {
		return err
	}

	scheduler := schedule.New(sock, logger, nil)
	for _, job := range cfg.Announces {
		if err := scheduler.Add(job); err != nil {
			sock.Disconnect()
			return err
		}
	}
	if scheduler.Len() > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	logger.Info("Listening for events... (Press Ctrl+C to exit)", zap.String("url", sock.URL()))

	// Returns when the server closes the connection or a signal arrives.
	sock.Wait(ctx)

	if err := sock.Disconnect(); err != nil {
		logger.Warn("Error during disconnect", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

const printerID = "cli-printer"

// registerPrinters writes join and leave events to out as tab-separated lines.
func registerPrinters(sock *chatsocket.EventSocket, out io.Writer) {
	sock.AddOnUserJoinCallback(chatsocket.JoinCallback{
		ID: printerID,
		F: func(username string) {
			fmt.Fprintf(out, "join\t%s\n", username)
		},
	})
	sock.AddOnUserLeaveCallback(chatsocket.LeaveCallback{
		ID: printerID,
		F: func(username string) {
			fmt.Fprintf(out, "leave\t%s\n", username)
		},
	})
}
