package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xiaot623/studybuddy/internal/chatclient"
	"github.com/xiaot623/studybuddy/internal/config"
)

var (
	chatUser string
	chatName string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to a running server from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("url", "ws://localhost:8090/ws", "WebSocket server address")
	chatCmd.Flags().String("api-key", "", "API key for authentication")
	chatCmd.Flags().StringVar(&chatUser, "user", "", "user id to chat as (required)")
	chatCmd.Flags().StringVar(&chatName, "name", "", "display name")
	_ = chatCmd.MarkFlagRequired("user")
	_ = viper.BindPFlag(config.KeyChatURL, chatCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag(config.KeyAPIKey, chatCmd.Flags().Lookup("api-key"))
}

func runChat(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s...\n", cfg.ChatURL)

	client, err := chatclient.Dial(cfg.ChatURL)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	if err := client.Hello(chatUser, chatName, cfg.APIKey); err != nil {
		return err
	}

	fmt.Fprintln(out, "Connected. Type a message and press Enter; #n picks an option; /quit exits.")

	go func() {
		if err := client.ReadLoop(out); err != nil {
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			os.Exit(1)
		}
	}()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			fmt.Fprintln(out, "Bye!")
			return nil
		}
		if err := client.Send(input); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return scanner.Err()
}
