// Command trac2github migrates a legacy Trac instance's tickets and
// their full edit histories into GitHub Issues.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trac2github/trac2github/internal/credential"
	"github.com/trac2github/trac2github/internal/github"
	"github.com/trac2github/trac2github/internal/labels"
	"github.com/trac2github/trac2github/internal/model"
	"github.com/trac2github/trac2github/internal/replay"
	"github.com/trac2github/trac2github/internal/trac"
)

var (
	configPath  string
	deduplicate bool
	startAt     int64
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:           "trac2github",
	Short:         "Migrate Trac tickets and their histories into GitHub Issues",
	Long: "trac2github replays a Trac instance's ticket histories as ordered\n" +
		"GitHub issue mutations: wiki markup becomes Markdown, free-text\n" +
		"fields become labels via pattern rules, and every field change\n" +
		"becomes a discrete API mutation in its original order.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var setTokenCmd = &cobra.Command{
	Use:   "set-token <login>",
	Short: "Store a GitHub token for a login in the system keyring",
	Long: "set-token reads a personal access token from stdin and stores it\n" +
		"in the system keyring, so credentials in the config file can omit\n" +
		"their token field.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stderr, "Token for %s: ", args[0])
		token, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("empty token")
		}
		return credential.SetToken(args[0], token)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "migration config file (required)")
	rootCmd.Flags().BoolVarP(&deduplicate, "deduplicate", "d", false, "skip tickets whose title already exists on the target")
	rootCmd.Flags().Int64VarP(&startAt, "start-at", "s", 0, "lowest ticket id to migrate")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")
	_ = rootCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(setTokenCmd)
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	rules, err := labels.Compile(cfg.Labels)
	if err != nil {
		return err
	}

	clients, err := buildClients(cfg)
	if err != nil {
		return err
	}

	store, err := trac.Open(cfg.Trac.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver := replay.NewDriver(store, clients, rules, cfg, logger, replay.Options{
		Deduplicate: deduplicate,
		StartAt:     startAt,
	})
	return driver.Run(ctx)
}

// buildClients creates one API client per configured credential.
// Credentials without an inline token fall back to the system keyring.
func buildClients(cfg *model.Config) (*github.Clients, error) {
	owner, repo, _ := strings.Cut(cfg.GitHub.Repository, "/")

	clients := make([]*github.Client, 0, len(cfg.GitHub.Credentials))
	for _, cred := range cfg.GitHub.Credentials {
		token := cred.Token
		if token == "" {
			var err error
			token, err = credential.Token(cred.Login)
			if err != nil {
				return nil, fmt.Errorf("no token for %s in config or keyring: %w", cred.Login, err)
			}
		}

		client := github.NewClient(cred.Login, token, owner, repo)
		if cfg.GitHub.APIURL != github.DefaultAPIEndpoint {
			client = client.WithBaseURL(cfg.GitHub.APIURL)
		}
		clients = append(clients, client)
	}

	return github.NewClients(clients), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "trac2github: %v\n", err)
		os.Exit(1)
	}
}
