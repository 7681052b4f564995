// Command execution for CLI commands.
//
// Information Hiding:
// - Service wiring (factory, registry, search, runtime) hidden
// - Interactive loop and output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/richinex/relay/chat"
	"github.com/richinex/relay/config"
	"github.com/richinex/relay/llm"
	"github.com/richinex/relay/mcp"
	"github.com/richinex/relay/model"
	"github.com/richinex/relay/storage"
	"github.com/richinex/relay/websearch"
)

// Options holds CLI execution options.
type Options struct {
	Provider      string
	MCPConfigPath string
	WebSearch     bool
	Verbose       bool
}

type app struct {
	service  *chat.Service
	settings config.Settings
	registry *mcp.Registry
	servers  []model.MCPServer
	log      zerolog.Logger
}

// newApp wires the orchestrator and its collaborators from configuration.
func newApp(opts Options) (*app, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()

	runtime := chat.NewRuntime()

	var registry *mcp.Registry
	var servers []model.MCPServer
	if opts.MCPConfigPath != "" {
		mcpConfig, err := mcp.LoadConfig(opts.MCPConfigPath)
		if err != nil {
			return nil, err
		}
		servers = mcpConfig.Servers()
		registry = mcp.NewRegistry(servers, log)
	}

	var search *websearch.Service
	if settings.WebSearch.Endpoint != "" {
		search = websearch.NewService(websearch.Options{
			Engine:     websearch.NewSearxEngine(settings.WebSearch.Endpoint),
			Cache:      runtime.Cache,
			MaxResults: settings.WebSearch.MaxResults,
			Enhanced:   settings.WebSearch.Enhanced,
			Log:        log,
		})
	}

	factory := llm.NewFactory(func(provider string) (llm.Config, error) {
		key, err := config.APIKeyFor(provider)
		if err != nil {
			return llm.Config{}, err
		}
		modelID, err := config.ModelFor(provider)
		if err != nil {
			return llm.Config{}, err
		}
		cfg := llm.Config{
			Provider:      provider,
			APIKey:        key,
			BaseURL:       config.BaseURLFor(provider),
			DefaultModel:  model.Model{ID: modelID, Provider: provider},
			MaxToolRounds: settings.LLM.MaxToolRounds,
			Log:           log,
		}
		if registry != nil {
			cfg.Tools = registry
		}
		return cfg, nil
	})

	service := chat.NewService(factory, search, registry, runtime, settings.LLM.Provider, log)
	return &app{service: service, settings: settings, registry: registry, servers: servers, log: log}, nil
}

func (a *app) close() {
	if a.registry != nil {
		a.registry.Close()
	}
}

func (a *app) assistant(enableWebSearch bool) model.Assistant {
	return model.Assistant{
		Model: &model.Model{ID: a.settings.LLM.Model, Provider: a.settings.LLM.Provider},
		Settings: model.AssistantSettings{
			Temperature:     &a.settings.LLM.Temperature,
			MaxTokens:       a.settings.LLM.MaxTokens,
			ContextCount:    a.settings.LLM.ContextCount,
			StreamOutput:    a.settings.LLM.StreamOutput,
			ReasoningEffort: a.settings.LLM.ReasoningEffort,
		},
		EnableWebSearch: enableWebSearch,
	}
}

// Chat starts an interactive chat session. With a topic id and db path the
// conversation persists across runs.
func Chat(ctx context.Context, topicID, dbPath string, opts Options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	var store storage.ConversationStorage = storage.NewMemoryStorage()
	if topicID != "" {
		sqlite, err := storage.OpenSqlite(dbPath)
		if err != nil {
			return err
		}
		store = sqlite
	}
	defer store.Close()

	messages := []model.Message{}
	if topicID != "" {
		messages, err = store.Load(ctx, topicID)
		if err != nil {
			return err
		}
		if len(messages) > 0 {
			fmt.Printf("Resumed topic %s (%d messages)\n", topicID, len(messages))
		}
	}

	assistant := a.assistant(opts.WebSearch)
	fmt.Printf("Chatting with %s/%s. Type 'exit' to quit.\n\n",
		a.settings.LLM.Provider, a.settings.LLM.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		userMsg := model.NewMessage(model.RoleUser, input)
		if len(a.servers) > 0 {
			userMsg.EnabledMCPs = a.servers
		}
		messages = append(messages, userMsg)

		reply := model.NewMessage(model.RoleAssistant, "")
		reply.Status = model.StatusPending

		printed := 0
		err := a.service.FetchChatCompletion(ctx, chat.FetchRequest{
			Message:   &reply,
			Messages:  messages,
			Assistant: assistant,
			OnResponse: func(m model.Message) {
				if len(m.Content) > printed {
					fmt.Print(m.Content[printed:])
					printed = len(m.Content)
				}
			},
		})
		fmt.Println()

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		messages = append(messages, reply)
		if topicID != "" {
			if err := store.Save(ctx, topicID, messages); err != nil {
				a.log.Warn().Err(err).Msg("failed to persist topic")
			}
		}
	}
	return scanner.Err()
}

// Translate runs a one-shot translation into the target language.
func Translate(ctx context.Context, text, language string, opts Options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	assistant := a.assistant(false)
	assistant.Prompt = "Translate the user's text into " + language +
		". Output only the translation, nothing else."

	printed := 0
	result, err := a.service.FetchTranslate(ctx, text, assistant, func(partial string) {
		if len(partial) > printed {
			fmt.Print(partial[printed:])
			printed = len(partial)
		}
	})
	if err != nil {
		return err
	}
	if printed == 0 {
		fmt.Print(result)
	}
	fmt.Println()
	return nil
}

// Check probes the configured provider/model pair.
func Check(ctx context.Context, opts Options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.service.CheckAPI(ctx, a.settings.LLM.Provider,
		model.Model{ID: a.settings.LLM.Model, Provider: a.settings.LLM.Provider})
	if result.Err != nil {
		return fmt.Errorf("check failed: %w", result.Err)
	}
	if !result.Valid {
		return fmt.Errorf("provider responded with an empty body")
	}

	fmt.Printf("%s/%s is reachable\n", a.settings.LLM.Provider, a.settings.LLM.Model)
	return nil
}

// Models lists the models the provider account can use.
func Models(ctx context.Context, opts Options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	models, err := a.service.FetchModels(ctx, a.settings.LLM.Provider)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("No models reported by this provider.")
		return nil
	}
	for _, m := range models {
		fmt.Println(m.ID)
	}
	return nil
}
