package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/testifysec/gatekeeper-authoring/internal/server"
	"github.com/testifysec/gatekeeper-authoring/pkg/watcher"
)

var (
	serverCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the lint server",
		Args:  cobra.NoArgs,
		RunE:  runServer,
	}

	serverAddress  string
	serverPort     int
	certFile       string
	keyFile        string
	clientCAFile   string
	policyRoot     string
	reloadInterval time.Duration
)

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(ctx, server.Config{
		Address:        serverAddress,
		Port:           serverPort,
		CertFile:       certFile,
		KeyFile:        keyFile,
		ClientCAFile:   clientCAFile,
		PolicyRoot:     policyRoot,
		ReloadInterval: reloadInterval,
	})
	if err != nil {
		return err
	}
	return s.Start(ctx)
}

func init() {
	serverCmd.Flags().StringVar(&serverAddress, "address", server.DefaultAddress, "Address for the server to listen on")
	serverCmd.Flags().IntVar(&serverPort, "port", server.DefaultPort, "Port for the server to listen on")
	serverCmd.Flags().StringVar(&certFile, "cert", "", "Certificate file for TLS termination")
	serverCmd.Flags().StringVar(&keyFile, "key", "", "Key file for TLS termination")
	serverCmd.Flags().StringVar(&clientCAFile, "client-ca-file", "", "path to client CA certificate")
	serverCmd.Flags().StringVar(&policyRoot, "policy-root", "", "directory below which schema files may be looked up (default: inline schemas only)")
	serverCmd.Flags().DurationVar(&reloadInterval, "reload-interval", watcher.DefaultInterval, "how often certificate changes are picked up")
	rootCmd.AddCommand(serverCmd)
}
