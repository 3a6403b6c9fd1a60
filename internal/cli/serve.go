package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/server"
	"github.com/rcliao/studymap/internal/session"
	"github.com/rcliao/studymap/internal/syllabus"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API for the web front end",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, 127.0.0.1:8080)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := openApp(ctx)
	defer a.Close()
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srv := server.New(server.Options{
		Log:            a.log,
		Registry:       session.NewRegistry(a.st, syllabus.WithLogger(a.log)),
		Generator:      a.generator(),
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		SecureCookie:   a.cfg.Server.SecureCookie,
	})
	if err := srv.Run(ctx, addr); err != nil {
		exitErr("serve", err)
	}
}
