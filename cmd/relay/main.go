// Package main provides the relay CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/relay/cli"
)

var (
	// Global flags
	provider  string
	mcpConfig string
	webSearch bool
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Streaming chat completions across LLM providers",
		Long: `A CLI for streaming chat completions across LLM provider families
(openai, anthropic, gemini, openrouter, deepseek, zhipu, hunyuan), with
MCP tool calling and optional web search augmentation.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "openai", "LLM provider family")
	rootCmd.PersistentFlags().StringVar(&mcpConfig, "mcp-config", "", "Path to MCP config file")
	rootCmd.PersistentFlags().BoolVar(&webSearch, "web-search", false, "Enable web search augmentation")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(translateCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:      provider,
		MCPConfigPath: mcpConfig,
		WebSearch:     webSearch,
		Verbose:       verbose,
	}
}

func chatCmd() *cobra.Command {
	var topicID string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. With --topic the conversation is
persisted to the database and resumed on the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), topicID, dbPath, options())
		},
	}

	cmd.Flags().StringVar(&topicID, "topic", "", "Topic ID for conversation persistence")
	cmd.Flags().StringVar(&dbPath, "db", ".relay/relay.db", "Database path for storage")

	return cmd
}

func translateCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text into another language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Translate(context.Background(), args[0], language, options())
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "English", "Target language")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the configured provider and model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Check(context.Background(), options())
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available to the provider account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Models(context.Background(), options())
		},
	}
}
