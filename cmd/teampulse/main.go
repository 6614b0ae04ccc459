package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teampulsehq/teampulse/internal/assistant"
	"github.com/teampulsehq/teampulse/internal/config"
	"github.com/teampulsehq/teampulse/internal/gateway"
	"github.com/teampulsehq/teampulse/internal/session"
	"github.com/teampulsehq/teampulse/internal/store"
	"github.com/teampulsehq/teampulse/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "teampulse",
	Short: "teampulse - team collaboration assistant",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (web UI, channels, reminders)",
	RunE:  runServe,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a one-shot project progress report",
	RunE:  runReport,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in always-reply mode",
	RunE:  runChat,
}

var chatUserID string

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show teampulse status",
	RunE:  runStatus,
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "act as this team member id")
	rootCmd.AddCommand(serveCmd, reportCmd, chatCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	if cfg.Provider.APIKey == "" {
		log.Warn("no API key set, assistant features run in disabled mode")
	}

	gw, err := gateway.New(cfg, log.Named("gateway"))
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	collab, err := assistant.New(cfg, log.Named("assistant"))
	if err != nil {
		return fmt.Errorf("create assistant client: %w", err)
	}
	defer collab.Close()

	st := store.New()
	store.Seed(st)

	report, err := collab.ProgressReport(context.Background(), st.Tasks(), st.Users())
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	fmt.Println(report)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Debug)
	defer log.Sync()

	if cfg.Provider.APIKey == "" {
		log.Warn("no API key set, assistant features run in disabled mode")
	}

	collab, err := assistant.New(cfg, log.Named("assistant"))
	if err != nil {
		return fmt.Errorf("create assistant client: %w", err)
	}
	defer collab.Close()

	st := store.New()
	store.Seed(st)

	user, err := chatUser(st, chatUserID)
	if err != nil {
		return err
	}

	fmt.Printf("Chatting as %s. Type /quit to exit.\n\n", user.Name)
	return chatLoop(context.Background(), os.Stdin, os.Stdout, st, user, collab, log.Named("session"))
}

// chatUser resolves the acting team member, defaulting to the first
// non-assistant member when no id is given.
func chatUser(st *store.Store, id string) (store.User, error) {
	if id != "" {
		u, ok := st.UserByID(id)
		if !ok {
			return store.User{}, fmt.Errorf("unknown user %q", id)
		}
		return u, nil
	}
	for _, u := range st.Users() {
		if u.Role == store.RoleMember && u.ID != store.AssistantUserID {
			return u, nil
		}
	}
	return store.User{}, fmt.Errorf("no team member to chat as")
}

// chatLoop drives one always-reply session over a line-based console.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, st *store.Store, user store.User, collab session.Collaborator, log *zap.Logger) error {
	replies := make(chan store.Message, 4)
	sess := session.New(st, st.Chat(), user, collab, log,
		session.WithAlwaysReply(),
		session.WithReplyHook(func(m store.Message) { replies <- m }),
	)

	sess.SeedAlerts(ctx)
	printReply(out, replies)

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "/quit" {
			return nil
		}
		if text != "" {
			sess.Post(ctx, text, nil)
			printReply(out, replies)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printReply(out io.Writer, replies <-chan store.Message) {
	select {
	case m := <-replies:
		fmt.Fprintf(out, "assistant> %s\n\n", m.Text)
	case <-time.After(2 * time.Minute):
		fmt.Fprintln(out, "assistant> (no reply)")
	}
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set TEAMPULSE_API_KEY environment variable")
	fmt.Println("  3. Run 'teampulse serve' and open the web UI")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set (assistant disabled)")
	}
	fmt.Printf("Web UI: enabled=%v port=%d\n", cfg.Channels.WebUI.Enabled, cfg.Gateway.Port)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Reminders: window=%dms tick=%dms\n", cfg.Reminder.WindowMs, cfg.Reminder.TickMs)

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
