package main

// Entry point for azure-status-web
import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"
	keyring "github.com/zalando/go-keyring"

	"github.com/FBakkensen/azure-status-web/auth"
	"github.com/FBakkensen/azure-status-web/config"
	"github.com/FBakkensen/azure-status-web/debugdump"
	"github.com/FBakkensen/azure-status-web/logging"
	"github.com/FBakkensen/azure-status-web/management"
	"github.com/FBakkensen/azure-status-web/metrics"
	"github.com/FBakkensen/azure-status-web/web"
)

const (
	cmdServe            = "serve"
	cmdSubs             = "subs"
	cmdRgs              = "rgs"
	cmdToken            = "token"
	cmdKeyringSetSecret = "keyring-set-secret"
	cmdKeyringDelete    = "keyring-delete-secret"
	cmdKeyringTest      = "keyring-test"
	cmdConfig           = "config"

	commandTimeout = 30 * time.Second
	// tokenHTTPTimeout bounds one call to the token endpoint
	tokenHTTPTimeout = 30 * time.Second
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func main() {
	args := os.Args[1:]

	cfg, cfgErr := config.NewConfigLoader().LoadWithArgs(args)

	logLevel := logging.ParseLevel(cfg.Logging.Level)
	if err := logging.InitLogger(logLevel); err != nil {
		fmt.Printf("Warning: Failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	if cfgErr != nil {
		logging.Error("Configuration error", "error", cfgErr.Error())
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" "+cfgErr.Error())
		os.Exit(1)
	}
	logging.Info("Starting azure-status-web", "config", cfg.File, "address", cfg.Server.Address, "logLevel", logging.GetLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args, os.Stdout, os.Stdin); err != nil {
		logging.Error("Command failed", "error", err.Error())
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" "+err.Error())
		stop()
		os.Exit(1)
	}
}

// commandOptions are the flags only main cares about. Config flags are
// consumed by the loader and ignored here.
type commandOptions struct {
	command      string
	subscription string
	secret       string
}

func parseCommand(args []string) (commandOptions, error) {
	fs := pflag.NewFlagSet("azure-status-web", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)

	var opts commandOptions
	fs.StringVar(&opts.subscription, "subscription", "", "subscription ID for rgs")
	fs.StringVar(&opts.secret, "secret", "", "client secret for keyring-set-secret (read from stdin when empty)")
	// Registered so their values are not mistaken for the command
	fs.String(config.FlagConfig, "", "")
	fs.String(config.FlagAddress, "", "")
	fs.String(config.FlagLogLevel, "", "")

	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("invalid arguments: %w", err)
	}
	opts.command = cmdServe
	if fs.NArg() > 0 {
		opts.command = strings.ToLower(fs.Arg(0))
	}
	return opts, nil
}

// run dispatches one command
func run(ctx context.Context, cfg config.Config, args []string, stdout io.Writer, stdin io.Reader) error {
	opts, err := parseCommand(args)
	if err != nil {
		return err
	}
	logging.Info("Running command", "command", opts.command)

	switch opts.command {
	case cmdServe:
		return serve(ctx, cfg)
	case cmdSubs:
		return listSubscriptions(ctx, cfg, stdout)
	case cmdRgs:
		return listResourceGroups(ctx, cfg, opts.subscription, stdout)
	case cmdToken:
		return showToken(ctx, cfg, stdout)
	case cmdKeyringSetSecret:
		return keyringSetSecret(opts.secret, stdout, stdin)
	case cmdKeyringDelete:
		return keyringDeleteSecret(stdout)
	case cmdKeyringTest:
		return keyringSelfTest(stdout)
	case cmdConfig:
		return showConfig(cfg, stdout)
	default:
		return fmt.Errorf("unknown command: %s. Available commands: %s", opts.command,
			strings.Join([]string{cmdServe, cmdSubs, cmdRgs, cmdToken, cmdConfig, cmdKeyringSetSecret, cmdKeyringDelete, cmdKeyringTest}, ", "))
	}
}

// newServices wires provider and management client from configuration
func newServices(cfg config.Config, rec *metrics.Recorder) (*auth.Provider, *management.Client, error) {
	provider := auth.NewProvider(auth.Credentials{
		TenantID:     cfg.Azure.TenantID,
		ClientID:     cfg.Azure.ClientID,
		ClientSecret: cfg.Azure.ClientSecret,
	},
		auth.WithBackend(cfg.Azure.TokenBackend),
		auth.WithAuthorityHost(cfg.Azure.AuthorityHost),
		auth.WithTokenEndpoint(cfg.Azure.TokenEndpoint),
		auth.WithHTTPClient(&http.Client{Timeout: tokenHTTPTimeout}),
		auth.WithMetrics(rec),
	)
	logging.Debug("Credential sources",
		"tenant", cfg.Sources.TenantID,
		"client", cfg.Sources.ClientID,
		"secret", cfg.Sources.ClientSecret,
	)

	client, err := management.NewClient(provider,
		management.WithEndpoint(cfg.Azure.ManagementEndpoint),
		management.WithMetrics(rec),
		management.WithRawCapture(debugdump.Options{
			Enabled:  cfg.Debug.ArmRawEnable,
			Path:     cfg.Debug.ArmRawFile,
			MaxBytes: cfg.Debug.ArmRawMaxBytes,
			Keep:     debugdump.DefaultKeep,
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create management client: %w", err)
	}
	return provider, client, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	rec := metrics.New()
	_, client, err := newServices(cfg, rec)
	if err != nil {
		return err
	}
	router, err := web.NewRouter(client, rec)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("azure-status-web") + " listening on " + cfg.Server.Address)
	return web.Serve(ctx, cfg.Server.Address, router)
}

// listSubscriptions prints the first page of subscriptions
func listSubscriptions(ctx context.Context, cfg config.Config, out io.Writer) error {
	_, client, err := newServices(cfg, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	subs, err := client.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Found %d subscriptions:", len(subs))))
	for i, s := range subs {
		fmt.Fprintf(out, "%d. %s %s - State: %s\n", i+1, s.DisplayName, dimStyle.Render("("+s.ID+")"), s.State)
	}
	logging.Info("Listed subscriptions", "count", fmt.Sprintf("%d", len(subs)))
	return nil
}

func listResourceGroups(ctx context.Context, cfg config.Config, subscriptionID string, out io.Writer) error {
	_, client, err := newServices(cfg, nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	groups, err := client.ListResourceGroups(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to list resource groups: %w", err)
	}

	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Found %d resource groups in %s:", len(groups), subscriptionID)))
	for i, g := range groups {
		fmt.Fprintf(out, "%d. %s - %s\n", i+1, g.Name, dimStyle.Render(g.Location))
	}
	return nil
}

// showToken acquires a token and prints its expiry. The token itself is masked.
func showToken(ctx context.Context, cfg config.Config, out io.Writer) error {
	provider, _, err := newServices(cfg, nil)
	if err != nil {
		return err
	}
	if !provider.IsAuthenticated() {
		return auth.ErrAuthNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	tok, err := provider.AccessToken(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, okStyle.Render("Token acquired"))
	fmt.Fprintf(out, "Tenant:     %s\n", provider.TenantID())
	fmt.Fprintf(out, "Backend:    %s\n", provider.Backend())
	fmt.Fprintf(out, "Scope:      %s\n", provider.Scope())
	fmt.Fprintf(out, "Token:      %s\n", config.MaskSecret(tok.Value))
	fmt.Fprintf(out, "Expires in: %s\n", tok.ExpiresIn(time.Now()).Round(time.Second))
	return nil
}

func keyringSetSecret(secret string, out io.Writer, in io.Reader) error {
	if strings.TrimSpace(secret) == "" {
		fmt.Fprint(out, "Client secret: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		secret = line
	}
	if err := config.SaveClientSecret(secret); err != nil {
		return err
	}
	service, key := config.KeyringEntryInfo()
	fmt.Fprintln(out, okStyle.Render("Client secret saved")+dimStyle.Render(fmt.Sprintf(" (%s/%s)", service, key)))
	fmt.Fprintln(out, dimStyle.Render("Read only when AZSTATUS_USE_KEYRING=true or Azure:UseKeyring is set"))
	return nil
}

func keyringDeleteSecret(out io.Writer) error {
	if err := config.DeleteClientSecret(); err != nil {
		return err
	}
	fmt.Fprintln(out, okStyle.Render("Client secret removed from keyring"))
	return nil
}

// showConfig prints the effective settings with secrets masked
func showConfig(cfg config.Config, out io.Writer) error {
	settings := cfg.ListAllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	file := cfg.File
	if file == "" {
		file = "(none)"
	}
	fmt.Fprintln(out, titleStyle.Render("Configuration")+dimStyle.Render(" from "+file))
	for _, k := range keys {
		fmt.Fprintf(out, "%-28s %s\n", k, settings[k])
	}
	fmt.Fprintf(out, "%-28s tenant=%s client=%s secret=%s\n", "Credential sources",
		orNone(cfg.Sources.TenantID), orNone(cfg.Sources.ClientID), orNone(cfg.Sources.ClientSecret))
	return nil
}

func orNone(source string) string {
	if source == config.SourceNone {
		return "none"
	}
	return source
}

// keyringSelfTest round-trips a throwaway entry to check the OS keyring works
func keyringSelfTest(out io.Writer) error {
	service, _ := config.KeyringEntryInfo()
	const key = "selftest"
	value := fmt.Sprintf("ok-%d", time.Now().UnixNano())

	if err := keyring.Set(service, key, value); err != nil {
		return fmt.Errorf("keyring set failed: %w", err)
	}
	got, err := keyring.Get(service, key)
	if err != nil {
		return fmt.Errorf("keyring get failed: %w", err)
	}
	if got != value {
		return fmt.Errorf("keyring returned a different value")
	}
	if err := keyring.Delete(service, key); err != nil {
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	fmt.Fprintln(out, okStyle.Render("Keyring OK")+dimStyle.Render(" ("+service+")"))
	return nil
}
