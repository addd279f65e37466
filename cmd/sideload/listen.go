package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buckleypaul/sideload/internal/artifact"
	"github.com/buckleypaul/sideload/internal/relay"
	"github.com/buckleypaul/sideload/internal/store"
	"github.com/buckleypaul/sideload/internal/ui"
)

func newListenCmd(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Only run the log relay, for an app that is already installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == 0 {
				port = a.cfg.LogPort
			}
			logFile := &relayLogFile{store: a.store, logger: a.logger}
			defer logFile.Close()

			l, err := relay.Start(port, io.MultiWriter(a.stdout, logFile),
				relay.WithLogger(a.logger.Named("relay")),
				relay.WithOnConnect(func(remote string) {
					fmt.Fprintln(a.stderr, ui.DimStyle.Render("app connected from "+remote))
				}))
			if err != nil {
				if errors.Is(err, relay.ErrBind) {
					return &exitError{code: 1, err: fmt.Errorf("cannot listen on port %d: %w", port, err)}
				}
				return err
			}
			defer l.Stop()

			hint := "no LAN address found"
			if ip := artifact.LANAddress(nil); ip != "" {
				hint = "device apps should target " + net.JoinHostPort(ip, strconv.Itoa(l.Port()))
			}
			fmt.Fprintln(a.stderr, ui.StageLine("listening", fmt.Sprintf("%s, %s (ctrl+c to stop)", l.Addr(), hint)))

			started := time.Now()
			_ = l.Wait(cmd.Context())
			if err := l.Stop(); err != nil {
				a.logger.Warn("log relay stop", zap.Error(err))
			}

			if l.Sessions() > 0 {
				if err := a.store.AddRelayLog(store.RelayLog{
					Port:      l.Port(),
					Timestamp: started,
					LogFile:   logFile.Name(),
					Sessions:  l.Sessions(),
					Bytes:     l.BytesRelayed(),
				}); err != nil {
					a.logger.Warn("could not record relay session", zap.Error(err))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}
