package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xferlab/ftpx/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an FTP server over a local directory",
	Long: `Run an FTP server over a local directory. Without --user the server
accepts anonymous logins read-only:

  ftpx serve --root /srv/ftp --addr :2121 --user alice --pass secret \
             --pasv-ports 30000-30100 --max-rate 10MB`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().String("root", ".", "directory to serve")
	serveCmd.Flags().String("addr", ":2121", "listen address")
	serveCmd.Flags().String("user", "", "username granted write access")
	serveCmd.Flags().String("pass", "", "password for --user")
	serveCmd.Flags().String("public-host", "", "address advertised in passive replies")
	serveCmd.Flags().String("pasv-ports", "", "passive port range, e.g. 30000-30100")
	serveCmd.Flags().String("max-rate", "", "data throughput cap, e.g. 10MB")

	for _, name := range []string{"root", "addr", "user", "pass", "public-host", "pasv-ports", "max-rate"} {
		_ = viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), serveCmd.Flags().Lookup(name))
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	driver, err := buildDriver(viper.GetString("root"), viper.GetString("user"), viper.GetString("pass"))
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithDriver(driver),
		server.WithLogger(slog.Default()),
	}

	if host := viper.GetString("public_host"); host != "" {
		opts = append(opts, server.WithPublicHost(host))
	}
	if spec := viper.GetString("pasv_ports"); spec != "" {
		min, max, err := parsePortRange(spec)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithPassivePortRange(min, max))
	}
	if spec := viper.GetString("max_rate"); spec != "" {
		bytesPerSec, err := humanize.ParseBytes(spec)
		if err != nil {
			return fmt.Errorf("invalid --max-rate %q: %w", spec, err)
		}
		opts = append(opts, server.WithMaxThroughput(int(bytesPerSec)))
	}

	s, err := server.New(viper.GetString("addr"), opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	slog.Info("ftp server started", "addr", viper.GetString("addr"), "root", viper.GetString("root"))

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildDriver(root, user, pass string) (*server.FSDriver, error) {
	if user == "" {
		// Anonymous read-only.
		return server.NewFSDriver(root)
	}
	return server.NewFSDriver(root, server.WithAuthenticator(func(u, p string) (string, bool, error) {
		if u == user && p == pass {
			return root, false, nil
		}
		// Anonymous stays available, read-only.
		if u == "anonymous" || u == "ftp" {
			return root, true, nil
		}
		return "", false, os.ErrPermission
	}))
}

// parsePortRange parses "min-max" into its bounds. Bound validation itself
// belongs to the server option.
func parsePortRange(spec string) (int, int, error) {
	lo, hi, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid port range %q, want min-max", spec)
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q: %w", spec, err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q: %w", spec, err)
	}
	if min > max {
		return 0, 0, errors.New("port range lower bound above upper bound")
	}
	return min, max, nil
}
