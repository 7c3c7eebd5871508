package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/cli/config"
)

type initOptions struct {
	alias       string
	domain      string
	issuer      string
	clientID    string
	audience    string
	roleClaim   string
	insecureTLS bool
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a course API deployment to cursos.json",
		Long: `Add a course API deployment to cursos.json in the current directory.

Examples:
  $ cursos init https://api.example.com --domain tenant.us.auth0.com --client-id abc123
  $ cursos init https://staging.example.com --alias staging --domain tenant.us.auth0.com --client-id abc123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitWithOptions(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.alias, "alias", "", "Server alias (production for the first server)")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Identity provider domain")
	cmd.Flags().StringVar(&opts.issuer, "issuer", "", "Identity provider issuer URL, instead of --domain")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "OAuth client ID of the CLI application")
	cmd.Flags().StringVar(&opts.audience, "audience", "", "API audience requested with the access token")
	cmd.Flags().StringVar(&opts.roleClaim, "role-claim", "", "Access token claim listing the user's roles")
	cmd.Flags().BoolVar(&opts.insecureTLS, "insecure", false, "Accept self-signed certificates from the API")

	return cmd
}

func runInitWithOptions(args []string, opts *initOptions) error {
	apiURL := strings.TrimRight(args[0], "/")

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Printf("Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	for _, server := range cfg.Servers {
		if server.URL == apiURL {
			fmt.Printf("Server with URL %s already exists in %s\n", apiURL, config.ConfigFileName)
			return nil
		}
	}

	alias := opts.alias
	if alias == "" {
		if len(cfg.Servers) == 0 {
			alias = "production"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("server alias '%s' is already used in %s", alias, config.ConfigFileName)
	}

	server := config.Server{
		Alias:              alias,
		URL:                apiURL,
		InsecureSkipVerify: opts.insecureTLS,
		Auth: config.AuthSettings{
			Domain:    opts.domain,
			Issuer:    opts.issuer,
			ClientID:  opts.clientID,
			Audience:  opts.audience,
			RoleClaim: opts.roleClaim,
		},
	}
	if err := server.Validate(); err != nil {
		return err
	}

	cfg.Servers = append(cfg.Servers, server)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Printf("✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, apiURL, alias)
	} else {
		fmt.Printf("✓ Added server %s (%s) to ./%s\n", apiURL, alias, config.ConfigFileName)
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'cursos login' to authenticate")
	fmt.Println("  2. Run 'cursos ls' to list courses")

	return nil
}
