package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [websocket-url] <message>",
	Short: "Send a raw frame to a chat server",
	Long: `Connect to a chat server, send one text frame exactly as given, and
disconnect. No framing or validation is applied to the message.

Examples:
  chatsocket send ws://localhost:8080/chat '{"type":"message","data":"hello"}'
  chatsocket send --config chat.hcl 'plain text'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var sendTimeout time.Duration

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "Total operation timeout")
}

func runSend(cmd *cobra.Command, args []string) error {
	urlArg, rest := splitURLArg(args)
	if len(rest) != 1 {
		return fmt.Errorf("expected exactly one message argument")
	}
	message := rest[0]

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

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := sock.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sock.Disconnect(); err != nil {
			logger.Warn("Error during disconnect", zap.Error(err))
		}
	}()

	if err := sock.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	logger.Info("Message sent", zap.String("url", sock.URL()), zap.Int("bytes", len(message)))
	return nil
}
